// Package embedsvccmder is the root embedsvc command.
package embedsvccmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/embedsvc/cmd/embedsvc/config"
	countcmder "github.com/papercomputeco/embedsvc/cmd/embedsvc/count"
	embedcmder "github.com/papercomputeco/embedsvc/cmd/embedsvc/embed"
	searchcmder "github.com/papercomputeco/embedsvc/cmd/embedsvc/search"
	seedcmder "github.com/papercomputeco/embedsvc/cmd/embedsvc/seed"
	servecmder "github.com/papercomputeco/embedsvc/cmd/embedsvc/serve"
	versioncmder "github.com/papercomputeco/embedsvc/cmd/version"
)

const embedsvcLongDesc string = `embedsvc embeds product texts and serves similarity search over them.

Run the server:
  embedsvc serve

Talk to a running server:
  embedsvc embed "red shoes" "blue hat"
  embedsvc search "red shoes" --top 3
  embedsvc count
  embedsvc seed products.txt`

const embedsvcShortDesc string = "embedsvc - embedding and vector search service"

func NewEmbedsvcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "embedsvc",
		Short:         embedsvcShortDesc,
		Long:          embedsvcLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .embedsvc config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(embedcmder.NewEmbedCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(countcmder.NewCountCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
