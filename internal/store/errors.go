package store

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/abhisek/drillbox/internal/progress"
)

// classify maps driver errors onto the progress sentinels. A missing row is
// ErrNotFound; timeouts, dropped connections and every other database
// failure surface as ErrStoreUnavailable.
func classify(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return errors.Wrap(progress.ErrNotFound, op)
	case errors.Is(err, progress.ErrNotFound),
		errors.Is(err, progress.ErrConflict),
		errors.Is(err, progress.ErrInvalidState),
		errors.Is(err, progress.ErrStoreUnavailable):
		return err
	default:
		return progress.Unavailable(errors.Wrap(err, op))
	}
}
