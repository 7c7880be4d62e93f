// Package embedcmder provides the embed command that stores texts via a
// running embedsvc API server.
package embedcmder

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/embedsvc/pkg/cliui"
	"github.com/papercomputeco/embedsvc/pkg/client"
	"github.com/papercomputeco/embedsvc/pkg/config"
	"github.com/papercomputeco/embedsvc/pkg/utils"
)

const previewLen = 72

type embedCommander struct {
	texts     []string
	apiTarget string
	quiet     bool
}

const embedLongDesc string = `Embed texts and add them to the collection via the embedsvc API.

Each argument is one text. The assigned ids are printed in argument order.

Examples:
  embedsvc embed "red shoes" "blue hat"
  embedsvc embed "green socks" --quiet
  embedsvc embed "yellow scarf" --api-target http://localhost:9000`

const embedShortDesc string = "Embed and store texts"

func NewEmbedCmd() *cobra.Command {
	cmder := &embedCommander{}

	cmd := &cobra.Command{
		Use:   "embed <text>...",
		Short: embedShortDesc,
		Long:  embedLongDesc,
		Args:  cobra.MinimumNArgs(1),
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
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.texts = args
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only ids, one per line")

	return cmd
}

func (c *embedCommander) run(ctx context.Context, w io.Writer) error {
	apiClient, err := client.New(client.Config{Target: c.apiTarget})
	if err != nil {
		return err
	}

	res, err := apiClient.Embed(ctx, c.texts)
	if err != nil {
		return fmt.Errorf("embedding texts: %w", err)
	}

	if c.quiet {
		for _, id := range res.IDs {
			fmt.Fprintln(w, id)
		}
		return nil
	}

	fmt.Fprintf(w, "\n  %s Embedded %s texts\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(len(res.IDs))),
	)
	for i, id := range res.IDs {
		fmt.Fprintf(w, "  %s  %s\n", cliui.IDStyle.Render(id), cliui.TextStyle.Render(utils.Truncate(c.texts[i], previewLen)))
	}
	fmt.Fprintln(w)
	return nil
}
