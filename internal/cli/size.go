package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chanq/internal/channel"
)

// SizeResult is the json payload of size.
type SizeResult struct {
	Channel string `json:"channel"`
	Size    int64  `json:"size"`
}

// NewSizeCommand creates the size command.
func NewSizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "size <channel>",
		Short: "Print the number of events in a channel",
		Long: `Print the number of committed events waiting in a channel.

Example:
  chanq --db ./chanq.db size orders`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSize(rootOpts, args[0], cmd)
		},
	}
}

func runSize(opts *RootOptions, channelName string, cmd *cobra.Command) error {
	p, logger, err := openProvider(cmd, opts)
	if err != nil {
		return err
	}
	defer closeProvider(p, logger)

	var n int64
	err = inTransaction(commandContext(cmd), p, func(ctx context.Context, tx *channel.Tx) error {
		var err error
		n, err = tx.Size(ctx, channelName)
		return err
	})
	if err != nil {
		return WrapExitError(ExitFailure, "size failed", err)
	}

	return newFormatter(cmd, opts).Success(
		fmt.Sprintf("%s: %d", channelName, n),
		SizeResult{Channel: channelName, Size: n},
	)
}
