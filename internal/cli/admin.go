package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewVHostCmd создаёт группу команд для виртуальных хостов.
func NewVHostCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vhost",
		Short: "Manage virtual hosts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a virtual host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := deps.Output()

			created, err := deps.Admin().CreateVHost(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if created {
				out.Success(fmt.Sprintf("VHost created: %s", args[0]))
			} else {
				out.Success(fmt.Sprintf("VHost already exists: %s", args[0]))
			}
			return nil
		},
	})

	return cmd
}

// NewQueuesCmd создаёт группу команд для просмотра очередей.
func NewQueuesCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queues",
		Short: "Inspect queues",
	}

	var vhost string
	list := &cobra.Command{
		Use:   "list",
		Short: "List queues of a virtual host",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := deps.Output()

			queues, err := deps.Admin().ListQueues(cmd.Context(), vhost)
			if err != nil {
				return err
			}

			rows := make([][]string, len(queues))
			for i, q := range queues {
				rows[i] = []string{q.Name, strconv.FormatBool(q.Durable), strconv.Itoa(q.Messages)}
			}

			out.Print([]string{"NAME", "DURABLE", "MESSAGES"}, rows, queues)
			return nil
		},
	}
	list.Flags().StringVar(&vhost, "vhost", deps.VHost, "Virtual host")

	cmd.AddCommand(list)
	return cmd
}
