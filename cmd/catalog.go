package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/drillbox/internal/progress"
	"github.com/abhisek/drillbox/internal/retry"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage topics and questions",
}

var catalogAddTopicCmd = &cobra.Command{
	Use:   "add-topic <name>",
	Short: "Create a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		difficulty, _ := cmd.Flags().GetInt("difficulty")
		t := progress.Topic{Name: args[0], DifficultyLevel: difficulty, ParentID: parentFlag(cmd)}

		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		created, err := rt.createTopic(ctx, t)
		if err != nil {
			return fmt.Errorf("create topic: %w", err)
		}
		return printJSON(cmd, created)
	},
}

var catalogAddQuestionCmd = &cobra.Command{
	Use:   "add-question <topic-id> <prompt>",
	Short: "Create a question in a topic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		topicID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid topic ID %q: %w", args[0], err)
		}
		difficulty, _ := cmd.Flags().GetInt("difficulty")
		points, _ := cmd.Flags().GetInt("points")
		inactive, _ := cmd.Flags().GetBool("inactive")
		q := progress.Question{
			TopicID:         topicID,
			DifficultyLevel: difficulty,
			Points:          points,
			Active:          !inactive,
			Prompt:          args[1],
		}

		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		created, err := rt.createQuestion(ctx, q)
		if err != nil {
			return fmt.Errorf("create question: %w", err)
		}
		return printJSON(cmd, created)
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List topics and their questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		activeOnly, _ := cmd.Flags().GetBool("active")
		topicID := topicFlag(cmd)

		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		topics, err := retry.Do(ctx, rt.retry, rt.store.Catalog().Topics)
		if err != nil {
			return fmt.Errorf("list topics: %w", err)
		}
		questions, err := retry.Do(ctx, rt.retry, func(ctx context.Context) ([]progress.Question, error) {
			return rt.catalog.ByTopic(ctx, topicID, activeOnly)
		})
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}

		byTopic := make(map[int64][]progress.Question)
		for _, q := range questions {
			byTopic[q.TopicID] = append(byTopic[q.TopicID], q)
		}
		out := make([]catalogEntry, 0, len(topics))
		for _, t := range topics {
			if topicID != nil && t.ID != *topicID {
				continue
			}
			qs := byTopic[t.ID]
			if qs == nil {
				qs = []progress.Question{}
			}
			out = append(out, catalogEntry{Topic: t, Questions: qs})
		}
		return printJSON(cmd, out)
	},
}

var catalogSetActiveCmd = &cobra.Command{
	Use:   "set-active <question-id> <true|false>",
	Short: "Activate or retire a question",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		questionID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid question ID %q: %w", args[0], err)
		}
		active, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid active value %q: %w", args[1], err)
		}

		ctx := cmd.Context()
		rt, err := openRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.setActive(ctx, questionID, active); err != nil {
			return fmt.Errorf("set active: %w", err)
		}
		return printJSON(cmd, map[string]any{"question_id": questionID, "active": active})
	},
}

// catalogWriter is the write side of the catalog.
type catalogWriter interface {
	CreateTopic(ctx context.Context, t progress.Topic) (progress.Topic, error)
	CreateQuestion(ctx context.Context, q progress.Question) (progress.Question, error)
	SetActive(ctx context.Context, questionID int64, active bool) error
}

// createTopic inserts t exactly once. An insert whose deadline fired may
// still have committed, so transient failures are returned, not retried.
func (rt *runtime) createTopic(ctx context.Context, t progress.Topic) (progress.Topic, error) {
	created, err := rt.writer.CreateTopic(ctx, t)
	if err != nil {
		return progress.Topic{}, err
	}
	rt.invalidateCatalog(ctx)
	return created, nil
}

// createQuestion inserts q exactly once, like createTopic.
func (rt *runtime) createQuestion(ctx context.Context, q progress.Question) (progress.Question, error) {
	created, err := rt.writer.CreateQuestion(ctx, q)
	if err != nil {
		return progress.Question{}, err
	}
	rt.invalidateCatalog(ctx)
	return created, nil
}

// setActive is idempotent and retried on transient failures.
func (rt *runtime) setActive(ctx context.Context, questionID int64, active bool) error {
	_, err := retry.Do(ctx, rt.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, rt.writer.SetActive(ctx, questionID, active)
	})
	if err != nil {
		return err
	}
	rt.invalidateCatalog(ctx)
	return nil
}

type catalogEntry struct {
	Topic     progress.Topic      `json:"topic"`
	Questions []progress.Question `json:"questions"`
}

func parentFlag(cmd *cobra.Command) *int64 {
	if !cmd.Flags().Changed("parent") {
		return nil
	}
	id, _ := cmd.Flags().GetInt64("parent")
	return &id
}

func init() {
	catalogAddTopicCmd.Flags().Int64("parent", 0, "Parent topic ID")
	catalogAddTopicCmd.Flags().Int("difficulty", 1, "Difficulty level (1-5)")

	catalogAddQuestionCmd.Flags().Int("difficulty", 1, "Difficulty level (1-5)")
	catalogAddQuestionCmd.Flags().Int("points", 10, "Points awarded for a correct answer")
	catalogAddQuestionCmd.Flags().Bool("inactive", false, "Create the question retired")

	catalogListCmd.Flags().Int64("topic", 0, "Only list one topic")
	catalogListCmd.Flags().Bool("active", false, "Only list active questions")

	catalogCmd.AddCommand(catalogAddTopicCmd)
	catalogCmd.AddCommand(catalogAddQuestionCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSetActiveCmd)
}
