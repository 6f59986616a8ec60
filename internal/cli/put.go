package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chanq/internal/channel"
	"github.com/roach88/chanq/internal/event"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Headers []string
	Body    string
	File    string
}

// PutResult is the json payload of put.
type PutResult struct {
	Channel string            `json:"channel"`
	Headers map[string]string `json:"headers,omitempty"`
	Bytes   int               `json:"bytes"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <channel>",
		Short: "Append one event to a channel",
		Long: `Append one event to the tail of a channel and commit.

The body comes from --body or from the contents of --file.

Example:
  chanq --db ./chanq.db put orders --header id=42 --body '{"sku":"widget"}'
  chanq --db ./chanq.db put images --file ./photo.jpg`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Headers, "header", nil, "header as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Body, "body", "", "event body")
	cmd.Flags().StringVar(&opts.File, "file", "", "read the event body from this file")
	cmd.MarkFlagsMutuallyExclusive("body", "file")

	return cmd
}

// parseHeaders turns key=value pairs into a header map. Values may be empty
// and may contain '='; keys may not be empty or repeated.
func parseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q: want key=value", pair)
		}
		if _, dup := headers[k]; dup {
			return nil, fmt.Errorf("duplicate header %q", k)
		}
		headers[k] = v
	}
	return headers, nil
}

func runPut(opts *PutOptions, channelName string, cmd *cobra.Command) error {
	headers, err := parseHeaders(opts.Headers)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --header", err)
	}

	body := []byte(opts.Body)
	if opts.File != "" {
		body, err = os.ReadFile(opts.File)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read --file", err)
		}
	}

	p, logger, err := openProvider(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeProvider(p, logger)

	ev := event.New(body, headers)
	err = inTransaction(commandContext(cmd), p, func(ctx context.Context, tx *channel.Tx) error {
		return tx.Persist(ctx, channelName, ev)
	})
	if err != nil {
		return WrapExitError(ExitFailure, "put failed", err)
	}

	f := newFormatter(cmd, opts.RootOptions)
	f.VerboseLog("persisted %s", ev)
	return f.Success(
		fmt.Sprintf("✓ 1 event (%d bytes) added to %s", len(body), channelName),
		PutResult{Channel: channelName, Headers: ev.Headers, Bytes: len(body)},
	)
}
