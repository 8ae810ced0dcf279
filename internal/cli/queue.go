package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/robbitt07/taskqueue/internal/mq"
)

// NewDeclareCmd создаёт команду объявления очередей.
func NewDeclareCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "declare [queue...]",
		Short: "Declare durable queues (defaults to RABBITMQ_QUEUES)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := deps.Output()

			queues := args
			if len(queues) == 0 {
				queues = deps.Queues
			}
			if len(queues) == 0 {
				return errors.New("no queues to declare")
			}

			if err := deps.Broker().DeclareQueues(cmd.Context(), queues); err != nil {
				return err
			}

			for _, q := range queues {
				out.Success(fmt.Sprintf("Queue declared: %s", q))
			}
			return nil
		},
	}
}

// purgeResult — строка результата purge.
type purgeResult struct {
	Queue  string `json:"queue"`
	Purged int    `json:"purged"`
}

// NewPurgeCmd создаёт команду очистки очередей. Без аргументов
// очищаются все очереди виртуального хоста из management API.
func NewPurgeCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "purge [queue...]",
		Short: "Purge queues (all queues of the vhost when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := deps.Output()

			queues := args
			if len(queues) == 0 {
				names, err := deps.Admin().QueueNames(cmd.Context(), deps.VHost)
				if err != nil {
					return fmt.Errorf("list queues: %w", err)
				}
				queues = names
			}
			if len(queues) == 0 {
				out.Success("No queues to purge")
				return nil
			}

			purged, err := deps.Broker().Purge(cmd.Context(), queues)
			if err != nil {
				return err
			}

			results := make([]purgeResult, 0, len(purged))
			for q, n := range purged {
				results = append(results, purgeResult{Queue: q, Purged: n})
			}
			sort.Slice(results, func(i, j int) bool { return results[i].Queue < results[j].Queue })

			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{r.Queue, strconv.Itoa(r.Purged)}
			}

			out.Print([]string{"QUEUE", "PURGED"}, rows, results)
			return nil
		},
	}
}

// consumedMessage — сообщение, выведенное командой consume.
type consumedMessage struct {
	Queue       string         `json:"queue"`
	MessageID   string         `json:"message_id"`
	Task        string         `json:"task"`
	Params      map[string]any `json:"params"`
	Redelivered bool           `json:"redelivered"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewConsumeCmd создаёт команду чтения сообщений из очереди.
// Каждое сообщение печатается и подтверждается; тело, не являющееся
// задачей, отклоняется без возврата в очередь.
func NewConsumeCmd(deps Deps) *cobra.Command {
	var maxMessages int

	cmd := &cobra.Command{
		Use:   "consume [queue]",
		Short: "Print and acknowledge messages from a queue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := deps.Output()

			queue := mq.DefaultQueue
			if len(args) == 1 {
				queue = args[0]
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			seen := 0
			return deps.Broker().Consume(ctx, queue, func(_ context.Context, d *mq.Delivery) error {
				m, err := d.Decode()
				if err != nil {
					out.Error(fmt.Sprintf("rejecting message %s: %v", d.MessageID, err))
					return err
				}

				params, _ := json.Marshal(m.Params)
				out.Line(
					[]string{d.Queue, d.MessageID, m.Task, string(params)},
					consumedMessage{
						Queue:       d.Queue,
						MessageID:   d.MessageID,
						Task:        m.Task,
						Params:      m.Params,
						Redelivered: d.Redelivered,
						Timestamp:   d.Timestamp,
					},
				)

				seen++
				if maxMessages > 0 && seen >= maxMessages {
					cancel()
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxMessages, "max", 0, "Stop after N messages (0 = until interrupted)")

	return cmd
}
