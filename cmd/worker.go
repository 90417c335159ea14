package cmd

import (
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"memcat/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background categorization worker",
	Long:  `Starts the Asynq worker process that categorizes memories queued in async mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}
		cfg := appInstance.Config

		srv := worker.NewServer(cfg)
		mux := asynq.NewServeMux()
		worker.RegisterHandlers(mux, worker.CategorizationDeps{
			Categorizer: appInstance.CategorizationService,
			JobStore:    appInstance.Store,
		})

		log.Infof("Starting Asynq worker server (Concurrency: %d, Queues: %v)...", cfg.Worker.Concurrency, cfg.Worker.Queues)
		if err := worker.Run(cmd.Context(), srv, mux); err != nil {
			log.Errorf("Worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
