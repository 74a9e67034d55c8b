package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitop-dev/relay/pkg/ai"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Print a user's conversation within the history window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if window == 0 {
				window = opts.cfg.History.Window
			}
			store, err := openHistory(opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			msgs, err := store.Query(cmd.Context(), args[0], window)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				_, err := fmt.Fprintln(out, "[no history]")
				return err
			}
			for _, m := range msgs {
				fmt.Fprintf(out, "%s  %-5s  %s\n",
					time.UnixMilli(timestamp(m)).Format("2006-01-02 15:04"),
					m.GetRole(),
					ai.Text(m),
				)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", 0, "how far back to look (default history.window)")
	return cmd
}

func timestamp(m ai.Message) int64 {
	switch v := m.(type) {
	case ai.UserMessage:
		return v.Timestamp
	case ai.AssistantMessage:
		return v.Timestamp
	}
	return 0
}
