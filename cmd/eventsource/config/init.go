package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/eventsource/pkg/cliui"
	"github.com/papercomputeco/eventsource/pkg/config"
	"github.com/papercomputeco/eventsource/pkg/dotdir"
)

const initLongDesc string = `Write a default config.toml.

Creates the .eventsource/ directory if needed (the --config-dir override,
or ~/.eventsource/ when no directory resolves) and writes a config.toml
populated with the default values. An existing file is left untouched
unless --force is given.

Examples:
  eventsource config init
  eventsource config init --config-dir ./.eventsource --force`

const initShortDesc string = "Write a default config.toml"

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInit(cmd.OutOrStdout(), configDir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func runInit(w io.Writer, configDir string, force bool) error {
	ddm := dotdir.NewManager()
	dir, err := ddm.Target(configDir)
	if err != nil {
		return err
	}
	if dir == "" {
		dir, err = ddm.Home()
		if err != nil {
			return err
		}
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	if _, err := os.Stat(target); err == nil && !force {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.DimStyle.Render("Config file already exists:"),
			cliui.ValueStyle.Render(target),
		)
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}

	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s Wrote %s\n\n", cliui.SuccessMark, cliui.ValueStyle.Render(target))
	return nil
}
