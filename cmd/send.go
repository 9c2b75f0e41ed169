package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fzft/go-frame-relay/client"
	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	var (
		addr    string
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send one frame",
		Long: `Send the arguments, joined by spaces, as a single frame. Without arguments the
whole of stdin is sent as one frame.

Examples:
  relay send hello world
  relay send --wait hello      # print the frame once the relay echoes it back
  cat blob.bin | relay send --addr 10.0.0.5:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			if len(args) > 0 {
				payload = []byte(strings.Join(args, " "))
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				payload = data
			}
			return runSend(cmd.Context(), addr, payload, wait, timeout, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8000", "Relay address")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the relayed copy and print it")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Dial and wait timeout")
	return cmd
}

func runSend(ctx context.Context, addr string, payload []byte, wait bool, timeout time.Duration, out io.Writer) error {
	if len(payload) == 0 {
		return fmt.Errorf("refusing to send an empty frame")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := client.Dial(dialCtx, addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Send(payload); err != nil {
		return err
	}
	if !wait {
		return nil
	}

	echo, err := c.ReceiveTimeout(timeout)
	if err != nil {
		return fmt.Errorf("waiting for relay: %w", err)
	}
	fmt.Fprintf(out, "%s\n", formatPayload(echo))
	return nil
}
