// Package configcmder provides the config command for managing persistent
// eventsource configuration stored in the .eventsource/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent eventsource configuration.

Configuration is stored as config.toml in the .eventsource/ directory and
provides default values for command flags. CLI flags and EVENTSOURCE_*
environment variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  stream.url, stream.method, stream.max_fragments,
  relay.upstream, relay.listen,
  publisher.provider, kafka.brokers, kafka.topic,
  log.json, log.file

Use subcommands to create, get, set, or list configuration values:
  eventsource config init                 Write a default config.toml
  eventsource config set <key> <value>    Set a configuration value
  eventsource config get <key>            Get a configuration value
  eventsource config list                 List all configuration values

Examples:
  eventsource config set relay.upstream http://localhost:8080
  eventsource config set publisher.provider kafka
  eventsource config get stream.url
  eventsource config list`

const configShortDesc string = "Manage persistent eventsource configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
