package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chanq/internal/channel"
)

// TakeOptions holds flags for the take command.
type TakeOptions struct {
	*RootOptions
	Count int
}

// TakenEvent is one removed event in the json payload of take. Body is
// base64 encoded so binary payloads survive.
type TakenEvent struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body"`
}

// TakeResult is the json payload of take.
type TakeResult struct {
	Channel string       `json:"channel"`
	Events  []TakenEvent `json:"events"`
}

// NewTakeCommand creates the take command.
func NewTakeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TakeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "take <channel>",
		Short: "Remove events from the head of a channel",
		Long: `Remove up to N events from the head of a channel in one transaction,
print them in order, and commit.

Example:
  chanq --db ./chanq.db take orders
  chanq --db ./chanq.db take orders -n 10 --format json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTake(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "maximum number of events to remove")

	return cmd
}

func runTake(opts *TakeOptions, channelName string, cmd *cobra.Command) error {
	if opts.Count < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--count must be at least 1, got %d", opts.Count))
	}

	p, logger, err := openProvider(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeProvider(p, logger)

	result := TakeResult{Channel: channelName, Events: []TakenEvent{}}
	var lines []string
	err = inTransaction(commandContext(cmd), p, func(ctx context.Context, tx *channel.Tx) error {
		for len(result.Events) < opts.Count {
			ev, err := tx.Remove(ctx, channelName)
			if err != nil {
				return err
			}
			if ev == nil {
				break
			}
			result.Events = append(result.Events, TakenEvent{Headers: ev.Headers, Body: ev.Body})
			lines = append(lines, fmt.Sprintf("%s %q", ev, ev.Body))
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitFailure, "take failed", err)
	}

	text := fmt.Sprintf("(%s is empty)", channelName)
	if len(lines) > 0 {
		text = strings.Join(lines, "\n")
	}
	return newFormatter(cmd, opts.RootOptions).Success(text, result)
}
