package cli

import (
	"errors"
	"fmt"

	"github.com/fmueller/batchscribe/internal/settings"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoSettingsPath = errors.New("no settings file location available; pass --config or set BATCHSCRIBE_CONFIG")

func newConfigCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change saved settings",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the settings file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if app.settingsPath == "" {
					return errNoSettingsPath
				}
				fmt.Fprintln(cmd.OutOrStdout(), app.settingsPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print every setting",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if app.settingsPath != "" {
					if _, err := settings.Read(app.settingsPath); err != nil {
						app.log().Warn("settings file has problems; showing defaults for those keys", zap.String("path", app.settingsPath), zap.Error(err))
					}
				}
				for _, key := range settings.Keys() {
					value, err := app.settings.Get(key)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := app.settings.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if app.settingsPath == "" {
					return errNoSettingsPath
				}
				s := app.settings
				if err := s.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := s.Validate(); err != nil {
					return fmt.Errorf("invalid settings: %w", err)
				}
				if err := settings.Save(app.settingsPath, s); err != nil {
					return err
				}
				app.settings = s
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if app.settingsPath == "" {
					return errNoSettingsPath
				}
				app.settings = settings.Default()
				if err := settings.Save(app.settingsPath, app.settings); err != nil {
					return err
				}
				app.log().Info("settings reset to defaults", zap.String("path", app.settingsPath))
				return nil
			},
		},
		&cobra.Command{
			Use:   "presets",
			Short: "List decoding presets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				for _, p := range settings.Presets() {
					fmt.Fprintf(cmd.OutOrStdout(), "%-9s temperature=%v beam_size=%d best_of=%d\n", p.Name, p.Temperature, p.BeamSize, p.BestOf)
				}
				return nil
			},
		},
	)

	return cmd
}
