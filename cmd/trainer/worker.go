package main

import (
	"log/slog"

	"chatbot-trainer/internal/messaging"

	"github.com/spf13/cobra"
)

func (a *app) newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consumes queued training tasks",
		Long:  "Consumes training tasks queued with --remote until interrupted. CONCURRENCY sets the number of tasks trained at once.",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			receiver, err := a.newReceiver(a.cfg)
			if err != nil {
				return err
			}
			defer receiver.Close()

			dispatcher, release, err := a.newDispatcher(c.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer release()

			worker := messaging.Worker{
				Dispatcher:  dispatcher,
				Reciever:    receiver,
				Concurrency: a.cfg.WorkerConcurrency,
			}

			slog.Info("worker started, waiting for tasks")
			worker.Run(c.Context())
			return nil
		},
	}
}
