package main

import (
	"context"

	"chatbot-trainer/cmd"
	"chatbot-trainer/internal/config"
	"chatbot-trainer/internal/messaging"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// deps builds the infrastructure behind the commands.
type deps struct {
	newDispatcher func(ctx context.Context, cfg *config.Config) (messaging.Dispatcher, func(), error)
	newPublisher  func(cfg *config.Config) (messaging.Publisher, error)
	newReceiver   func(cfg *config.Config) (messaging.Reciever, error)
	openRegistry  func(cfg *config.Config) (*gorm.DB, error)
}

func defaultDeps() deps {
	return deps{
		newDispatcher: func(ctx context.Context, cfg *config.Config) (messaging.Dispatcher, func(), error) {
			return cmd.CreateDispatcher(ctx, cfg)
		},
		newPublisher: cmd.CreatePublisher,
		newReceiver:  cmd.CreateReceiver,
		openRegistry: cmd.OpenRegistry,
	}
}

type app struct {
	deps
	cfg *config.Config
}

func newRootCmd(d deps) *cobra.Command {
	a := &app{deps: d}
	var envFile string

	root := &cobra.Command{
		Use:           "trainer",
		Short:         "Trains dialogue and language understanding models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if err := config.SetupLogging(cfg.LogLevel); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env", "", "path to load env from")

	trainCmd := a.newTrainCmd()
	trainCmd.AddCommand(a.newTrainCoreCmd(), a.newTrainNluCmd())
	root.AddCommand(trainCmd, a.newWorkerCmd(), a.newRunsCmd())

	return root
}
