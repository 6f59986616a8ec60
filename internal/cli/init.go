package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitResult is the json payload of init.
type InitResult struct {
	Backend      string `json:"backend"`
	CreateSchema bool   `json:"create_schema"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or verify the store schema",
		Long: `Connect to the store and bootstrap its schema.

With create_schema enabled (the default) missing tables are created.
Otherwise the existing schema is only verified.

Example:
  chanq --db ./chanq.db init
  chanq --config ./chanq.yaml init`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	p, logger, err := openProvider(cmd, opts)
	if err != nil {
		return err
	}
	defer closeProvider(p, logger)

	result := InitResult{
		Backend:      p.Backend(),
		CreateSchema: p.Config().CreateSchema,
	}
	return newFormatter(cmd, opts).Success(fmt.Sprintf("✓ %s store ready", result.Backend), result)
}
