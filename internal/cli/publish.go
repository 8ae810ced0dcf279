package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robbitt07/taskqueue/internal/mq"
)

// NewPublishCmd создаёт команду публикации задачи.
func NewPublishCmd(deps Deps) *cobra.Command {
	var (
		queue  string
		params string
		count  int
	)

	cmd := &cobra.Command{
		Use:   "publish <task>",
		Short: "Publish a task message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := deps.Output()

			var p map[string]any
			if params != "" {
				if err := json.Unmarshal([]byte(params), &p); err != nil {
					return fmt.Errorf("invalid --params: %w", err)
				}
			}
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}

			broker := deps.Broker()
			for i := 0; i < count; i++ {
				if err := broker.PublishTask(cmd.Context(), queue, args[0], p); err != nil {
					return err
				}
			}

			out.Success(fmt.Sprintf("Published %d x %s to %s", count, args[0], queue))
			return nil
		},
	}

	cmd.Flags().StringVarP(&queue, "queue", "q", mq.DefaultQueue, "Target queue")
	cmd.Flags().StringVarP(&params, "params", "p", "", "Task params as JSON object")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of copies to publish")

	return cmd
}
