package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"interview-evaluator/client"
	"interview-evaluator/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch <interview-id>",
	Short: "Poll an interview until its evaluation is done or failed",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("server", client.DefaultBaseURL, "base URL of the interview evaluator API")
	watchCmd.Flags().Duration("interval", client.DefaultPollInterval, "polling interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	interval, _ := cmd.Flags().GetDuration("interval")
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var failure error
	poller := client.NewPoller(client.New(server, nil), args[0], client.PollOptions{
		Interval: interval,
		OnUpdate: func(v domain.StatusView) {
			fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), v.Status)
		},
		OnDone: func(v domain.StatusView) {
			if v.Score != nil {
				fmt.Fprintf(out, "score: %d\n", *v.Score)
			}
			keys := make([]string, 0, len(v.Breakdown))
			for k := range v.Breakdown {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %-16s %d\n", k, v.Breakdown[k])
			}
		},
		OnFailed: func(v domain.StatusView) {
			failure = fmt.Errorf("evaluation failed: %s", v.ErrorMessage)
		},
		OnError: func(err error) {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				failure = err
				stop()
				return
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "poll error: %v\n", err)
		},
	})

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return failure
}
