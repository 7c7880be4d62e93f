// Package seedcmder provides the seed command that bulk loads product texts
// into a running embedsvc server.
package seedcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/embedsvc/pkg/cliui"
	"github.com/papercomputeco/embedsvc/pkg/client"
	"github.com/papercomputeco/embedsvc/pkg/config"
)

const seedLongDesc string = `Seed the collection from a text file, one product per line.

Blank lines are skipped. Texts are sent to POST /embed in batches.
Use "-" to read from stdin.

Examples:
  embedsvc seed products.txt
  embedsvc seed products.txt --batch-size 16
  cat products.txt | embedsvc seed -`

const seedShortDesc string = "Seed product texts from a file"

const defaultBatchSize = 64

type seedCommander struct {
	path      string
	batchSize int
	apiTarget string
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: seedShortDesc,
		Long:  seedLongDesc,
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
			cmder.path = args[0]
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&cmder.batchSize, "batch-size", "b", defaultBatchSize, "Texts per /embed request")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *seedCommander) run(ctx context.Context, stdin io.Reader, w io.Writer) error {
	if c.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.batchSize)
	}

	texts, err := c.readTexts(stdin)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		fmt.Fprintln(w, "No texts to seed.")
		return nil
	}

	apiClient, err := client.New(client.Config{Target: c.apiTarget})
	if err != nil {
		return err
	}

	start := time.Now()
	seeded := 0
	for batch := range slices.Chunk(texts, c.batchSize) {
		msg := fmt.Sprintf("Embedding texts %d-%d of %d", seeded+1, seeded+len(batch), len(texts))
		if err := cliui.Step(w, msg, func() error {
			_, embedErr := apiClient.Embed(ctx, batch)
			return embedErr
		}); err != nil {
			return fmt.Errorf("seeding after %d texts: %w", seeded, err)
		}
		seeded += len(batch)
	}

	fmt.Fprintf(w, "\n  %s Seeded %s texts %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(seeded)),
		cliui.DimStyle.Render(fmt.Sprintf("from %s in %s", c.path, cliui.FormatDuration(time.Since(start)))),
	)
	return nil
}

func (c *seedCommander) readTexts(stdin io.Reader) ([]string, error) {
	r := stdin
	if c.path != "-" {
		f, err := os.Open(c.path)
		if err != nil {
			return nil, fmt.Errorf("opening seed file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return ReadTexts(r)
}

// ReadTexts returns the non-blank lines of r, trimmed.
func ReadTexts(r io.Reader) ([]string, error) {
	var texts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		texts = append(texts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading seed texts: %w", err)
	}
	return texts, nil
}
