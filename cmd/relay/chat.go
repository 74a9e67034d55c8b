package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitop-dev/relay/pkg/bridge"
	"github.com/bitop-dev/relay/pkg/reply"
)

const consoleUser = "console"

func newChatCmd(opts *rootOptions) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bridge from the terminal",
		Long: `chat reads one message per line from stdin and prints what the bot would
send. Replies are marked "<" and pushes "<<". Commands work as in LINE: !pwd,
!cd <dir>, !<shell command>. Ctrl-D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts, user, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&user, "user", consoleUser, "user id for history and working directory")
	return cmd
}

func runChat(ctx context.Context, opts *rootOptions, user string, in io.Reader, out io.Writer) error {
	rec := &reply.Recorder{OnDeliver: func(d reply.Delivery) {
		mark := "<"
		if d.Kind == reply.KindPush {
			mark = "<<"
		}
		fmt.Fprintf(out, "%s %s\n", mark, d.Text)
	}}

	a, err := wireApp(ctx, opts.cfg, opts.log, rec)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(out, "workdir: %s\n", a.workdirs.Workdir(user))

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		a.handler.Handle(ctx, bridge.Inbound{
			UserID:   user,
			Text:     text,
			AckToken: "console-" + strconv.Itoa(n),
		})
	}
	return sc.Err()
}
