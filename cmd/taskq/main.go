// taskq — инструмент командной строки для очередей задач.
//
// Использование:
//
//	taskq [--env-file PATH] [--json] <command> [flags]
//
// Команды:
//
//	publish   Публикация задачи
//	declare   Объявление очередей
//	consume   Чтение сообщений из очереди
//	purge     Очистка очередей
//	vhost     Виртуальные хосты (management API)
//	queues    Список очередей (management API)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/robbitt07/taskqueue/internal/admin"
	"github.com/robbitt07/taskqueue/internal/cli"
	"github.com/robbitt07/taskqueue/internal/config"
	"github.com/robbitt07/taskqueue/internal/mq"
	"github.com/robbitt07/taskqueue/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var envFile string
	var jsonOutput bool

	// Переменные окружения читаются до построения команд: от них зависят
	// значения флагов по умолчанию. --env-file подгружается до этого вручную.
	for i, arg := range os.Args {
		switch {
		case arg == "--env-file" && i+1 < len(os.Args):
			envFile = os.Args[i+1]
		case strings.HasPrefix(arg, "--env-file="):
			envFile = strings.TrimPrefix(arg, "--env-file=")
		}
	}

	var envPaths []string
	if envFile != "" {
		envPaths = append(envPaths, envFile)
	}
	cfg, err := config.Load("taskq", envPaths...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	// Логи CLI идут в stderr, чтобы не смешиваться с данными.
	logCfg := cfg.Logging()
	logCfg.Format = "color"
	logCfg.Writer = os.Stderr
	if cfg.Log.Level == "INFO" {
		logCfg.Level = "WARN"
	}
	logger := telemetry.SetupLogger(logCfg)

	var publisher *mq.TaskPublisher
	deps := cli.Deps{
		Broker: func() cli.Broker {
			if publisher == nil {
				publisher = mq.NewTaskPublisher(cfg.MQ(), logger)
			}
			return publisher
		},
		Admin: func() cli.Admin {
			return admin.NewClient(cfg.AdminURL(), cfg.RabbitMQ.User, cfg.RabbitMQ.Password)
		},
		Output: func() *cli.Output { return cli.NewOutput(jsonOutput) },
		VHost:  cfg.RabbitMQ.VHost,
		Queues: cfg.RabbitMQ.Queues,
	}

	rootCmd := &cobra.Command{
		Use:           "taskq",
		Short:         "taskq — RabbitMQ task queue tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", envFile, "Path to .env file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(
		cli.NewPublishCmd(deps),
		cli.NewDeclareCmd(deps),
		cli.NewConsumeCmd(deps),
		cli.NewPurgeCmd(deps),
		cli.NewVHostCmd(deps),
		cli.NewQueuesCmd(deps),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = rootCmd.ExecuteContext(ctx)
	if publisher != nil {
		_ = publisher.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
