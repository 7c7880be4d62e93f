// Package configcmder provides the config command for managing persistent
// embedsvc configuration stored in the .embedsvc/ directory.
package configcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/embedsvc/pkg/config"
)

const configLongDesc string = `Manage persistent embedsvc configuration.

Configuration is stored as config.toml in the .embedsvc/ directory and provides
default values for command flags. CLI flags and EMBEDSVC_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.listen, api.static_dir, api.mcp,
  client.api_target, collection.name,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.target, embedding.model,
  embedding.dimensions, embedding.api_key,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  embedsvc config set <key> <value>    Set a configuration value
  embedsvc config get <key>            Get a configuration value
  embedsvc config list                 List all configuration values

Examples:
  embedsvc config set vector_store.provider sqlite
  embedsvc config set embedding.model nomic-embed-text
  embedsvc config get collection.name
  embedsvc config list`

const configShortDesc string = "Manage persistent embedsvc configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
