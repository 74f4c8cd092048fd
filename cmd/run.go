package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler and the Telegram listener until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		errs := make(chan error, 2)
		go func() { errs <- app.scheduler.Run(ctx) }()
		go func() { errs <- app.listener.Run(ctx) }()

		// both loops return nil on context cancellation
		if err := <-errs; err != nil {
			stop()
			<-errs
			return err
		}
		<-errs

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
