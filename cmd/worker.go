package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/mailer"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start worker pools for various services",
	Long:  `Start and manage worker pools, currently the transactional mail dispatcher.`,
}

var mailWorkerCmd = &cobra.Command{
	Use:   "mail",
	Short: "Start mail delivery worker pool",
	Long:  `Start the mail worker pool that drains the delivery queue against the mail API`,
	Run: func(cmd *cobra.Command, args []string) {
		startMailWorker()
	},
}

func init() {
	workerCmd.AddCommand(mailWorkerCmd)
}

func startMailWorker() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	client := mailer.NewClient(mailer.Config{
		APIURL:       cfg.Mailer.APIURL,
		APIKey:       cfg.Mailer.APIKey,
		FromAddress:  cfg.Mailer.FromAddress,
		SendTimeout:  cfg.Mailer.SendTimeout,
		MaxWorkers:   cfg.Mailer.MaxWorkers,
		JobQueueSize: cfg.Mailer.JobQueueSize,
	}, lg)

	lg.Info("mail worker running, waiting for shutdown signal")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	lg.Info("received signal, shutting down mail worker", "signal", sig)
	client.Shutdown()
}
