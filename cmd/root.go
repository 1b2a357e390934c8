package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/drillbox/internal/config"
	"github.com/abhisek/drillbox/internal/learning"
	"github.com/abhisek/drillbox/internal/mastery"
	"github.com/abhisek/drillbox/internal/retry"
	"github.com/abhisek/drillbox/internal/spacedrep"
	"github.com/abhisek/drillbox/internal/store"
	"github.com/abhisek/drillbox/internal/store/cache"
)

var (
	v   = config.New()
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:          "drillbox",
	Short:        "Spaced-repetition practice scheduler",
	Long:         "drillbox schedules question reviews, picks the next question to practice and reports streak, weak-area and pace statistics.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("config")
		c, err := config.Load(v, file)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		return nil
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a config file (yaml, toml or json)")
	flags.String("db", "", "Database DSN or SQLite file path (overrides DRILLBOX_DB_DSN)")
	flags.String("driver", "", "Database driver: sqlite or postgres (overrides DRILLBOX_DB_DRIVER)")
	flags.String("user", "", "Learner ID (overrides DRILLBOX_USER)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")

	bind := map[string]string{
		"db.dsn":    "db",
		"db.driver": "driver",
		"user":      "user",
		"log.level": "log-level",
	}
	for key, name := range bind {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(versionCmd)
}

// runtime bundles everything a command needs. Close releases it.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	catalog learning.QuestionCatalog
	writer  catalogWriter
	cache   *cache.CachedCatalog
	redis   *cache.RedisBackend
	service *learning.Service
	retry   retry.Config
}

// openRuntime opens the store, connects the optional catalog cache and
// builds the learning service from cfg.
func openRuntime(ctx context.Context) (*runtime, error) {
	logger := cfg.Logger(os.Stderr)

	dsn, err := resolveDBPath(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(ctx, store.Config{Driver: cfg.DB.Driver, DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: st, catalog: st.Catalog(), writer: st.Catalog()}

	if cfg.Redis.Addr != "" {
		rc := cache.DefaultRedisConfig()
		rc.Addr = cfg.Redis.Addr
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		backend, err := cache.NewRedisBackend(ctx, rc, logger)
		if err != nil {
			logger.Warn("catalog cache disabled", "error", err)
		} else {
			rt.redis = backend
			rt.cache = cache.NewCachedCatalog(st.Catalog(), backend, cfg.Redis.TTL, logger)
			rt.catalog = rt.cache
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.retry = retry.DefaultConfig()
	rt.retry.MaxAttempts = cfg.Retry.MaxAttempts
	rt.retry.InitialWait = cfg.Retry.InitialWait

	scheduler := spacedrep.NewScheduler(spacedrep.ForMode(cfg.SchedulerMode(), cfg.Scheduler.MaxIntervalDays), logger)
	logger.Debug("learning service configured",
		"scheduler_mode", scheduler.Mode(),
		"confidence_formula", cfg.Confidence.Formula)

	rt.service = learning.NewService(st.Progress(), rt.catalog, st.Attempts(), learning.Options{
		Scheduler:          scheduler,
		Estimator:          mastery.NewEstimator(cfg.ConfidenceFormula()),
		Weights:            cfg.Selector,
		StoreTimeout:       cfg.Store.Timeout,
		MaxConflictRetries: cfg.Store.MaxConflictRetries,
		Location:           loc,
		Logger:             logger,
	})
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		rt.redis.Close()
	}
	rt.store.Close()
}

// invalidateCatalog drops cached catalog entries after a catalog write.
func (rt *runtime) invalidateCatalog(ctx context.Context) {
	if rt.cache != nil {
		rt.cache.Invalidate(ctx)
	}
}

// resolveDBPath returns the DSN to open. For SQLite it uses the configured
// path (--db flag, then DRILLBOX_DB_DSN), then the default XDG path.
func resolveDBPath(db config.DBConfig) (string, error) {
	if db.Driver == store.DriverPostgres {
		return db.DSN, nil
	}
	if db.DSN != "" {
		return db.DSN, store.EnsureDir(db.DSN)
	}
	return store.DefaultDBPath()
}

// bindViper is used by subcommands that expose config keys as local flags.
func bindViper(key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
		panic(err)
	}
}
