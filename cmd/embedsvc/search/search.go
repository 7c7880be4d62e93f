// Package searchcmder provides the search command for similarity search over
// the collection.
package searchcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/embedsvc/pkg/cliui"
	"github.com/papercomputeco/embedsvc/pkg/client"
	"github.com/papercomputeco/embedsvc/pkg/collection"
	"github.com/papercomputeco/embedsvc/pkg/config"
)

type searchCommander struct {
	query string
	topK  int
	quiet bool

	apiTarget string
}

const searchLongDesc string = `Search the collection via the embedsvc API.

Returns the stored texts nearest to the query, closest first, with their
distances (lower is closer).

Use --quiet to output only matching texts, one per line.

Examples:
  embedsvc search "red shoes"
  embedsvc search "warm clothes" --top 10
  embedsvc search "warm clothes" --quiet --api-target http://localhost:9000`

const searchShortDesc string = "Search the collection"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
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
			cmder.query = args[0]
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only matching texts, one per line")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *searchCommander) run(ctx context.Context, w io.Writer) error {
	apiClient, err := client.New(client.Config{Target: c.apiTarget})
	if err != nil {
		return err
	}

	output, err := apiClient.Search(ctx, c.query, c.topK)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	render(w, output, c.quiet)
	return nil
}

func render(w io.Writer, output *collection.SearchResult, quiet bool) {
	var texts []string
	var scores []float32
	if len(output.Results) > 0 {
		texts = output.Results[0]
	}
	if len(output.Scores) > 0 {
		scores = output.Scores[0]
	}

	if len(texts) == 0 {
		if !quiet {
			fmt.Fprintln(w, "No results found.")
		}
		return
	}

	if quiet {
		for _, text := range texts {
			fmt.Fprintln(w, text)
		}
		return
	}

	fmt.Fprintf(w, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Search Results for:"),
		cliui.IDStyle.Render(fmt.Sprintf("%q", output.Query)),
	)

	for i, text := range texts {
		score := ""
		if i < len(scores) {
			score = cliui.ScoreStyle.Render(fmt.Sprintf("(distance: %.4f)", scores[i]))
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			cliui.RankStyle.Render(fmt.Sprintf("%d.", i+1)),
			cliui.TextStyle.Render(text),
			score,
		)
	}
	fmt.Fprintln(w)
}
