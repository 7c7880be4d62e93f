// Package countcmder provides the count command.
package countcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/embedsvc/pkg/client"
	"github.com/papercomputeco/embedsvc/pkg/config"
)

type countCommander struct {
	apiTarget string
}

const countLongDesc string = `Print the number of documents stored in the collection.

Examples:
  embedsvc count
  embedsvc count --api-target http://localhost:9000`

const countShortDesc string = "Count stored documents"

func NewCountCmd() *cobra.Command {
	cmder := &countCommander{}

	cmd := &cobra.Command{
		Use:   "count",
		Short: countShortDesc,
		Long:  countLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})
			cmder.apiTarget = v.GetString("client.api_target")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *countCommander) run(ctx context.Context, w io.Writer) error {
	apiClient, err := client.New(client.Config{Target: c.apiTarget})
	if err != nil {
		return err
	}

	n, err := apiClient.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting: %w", err)
	}

	fmt.Fprintln(w, n)
	return nil
}
