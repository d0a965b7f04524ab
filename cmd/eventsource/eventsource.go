// Package eventsourcecmder
package eventsourcecmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/eventsource/cmd/eventsource/config"
	relaycmder "github.com/papercomputeco/eventsource/cmd/eventsource/relay"
	tailcmder "github.com/papercomputeco/eventsource/cmd/eventsource/tail"
	versioncmder "github.com/papercomputeco/eventsource/cmd/version"
)

const eventsourceLongDesc string = `Eventsource streams Server-Sent Events and turns them into fragments.

Use:
  eventsource tail <url>    Print the fragments of an event stream
  eventsource relay         Relay upstream event streams and publish their fragments
  eventsource config        Manage persistent configuration`

const eventsourceShortDesc string = "Eventsource - Server-Sent Events client and relay"

func NewEventsourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "eventsource",
		Short:        eventsourceShortDesc,
		Long:         eventsourceLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .eventsource/ config directory")

	// Add subcommands
	cmd.AddCommand(tailcmder.NewTailCmd())
	cmd.AddCommand(relaycmder.NewRelayCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
