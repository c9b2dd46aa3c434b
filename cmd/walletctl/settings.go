package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lightning-worker/go-backend/internal/settings"
)

type settingRow struct {
	Name       string  `json:"name"`
	Value      *string `json:"value"`
	Overridden bool    `json:"overridden"`
	Default    *string `json:"default,omitempty"`
}

func newSettingsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persisted setting overrides",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print every setting as the daemon would resolve it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSettingsShow(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "set NAME VALUE",
			Short: "Persist an override; a value equal to the default clears it, \"\" unsets the setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSettingsSet(cmd, opts, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "unset NAME",
			Short: "Remove an override so the default applies again",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSettingsUnset(cmd, opts, args[0])
			},
		},
	)
	return cmd
}

func runSettingsShow(cmd *cobra.Command, opts *globalOptions) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	resolved, resolveErr := e.resolve(ctx)
	rows := make([]settingRow, 0, len(settings.Entries()))
	for _, entry := range settings.Entries() {
		_, overridden, err := e.bundle.Overrides.Get(ctx, entry.StorageKey)
		if err != nil {
			return err
		}
		row := settingRow{Name: string(entry.Name), Overridden: overridden}
		if v, ok := resolved.Value(entry.Name); ok {
			row.Value = &v
		}
		if def, ok := e.defaults.Value(entry.Name); ok {
			row.Default = &def
		}
		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		payload := map[string]any{"settings": rows}
		if resolveErr != nil {
			payload["error"] = resolveErr.Error()
		}
		if err := printJSON(out, payload); err != nil {
			return err
		}
		return resolveErr
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVALUE\tOVERRIDDEN")
	for _, row := range rows {
		value := "<unset>"
		if row.Value != nil {
			value = *row.Value
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\n", row.Name, value, row.Overridden)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return resolveErr
}

func runSettingsSet(cmd *cobra.Command, opts *globalOptions, rawName, value string) error {
	name, ok := settings.ParseName(rawName)
	if !ok {
		return fmt.Errorf("unknown setting %q", rawName)
	}
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := settings.Write(ctx, e.bundle.Overrides, e.defaults, settings.Partial{name: value}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", name)
	return nil
}

func runSettingsUnset(cmd *cobra.Command, opts *globalOptions, rawName string) error {
	name, ok := settings.ParseName(rawName)
	if !ok {
		return fmt.Errorf("unknown setting %q", rawName)
	}
	entry, _ := settings.Lookup(name)
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.bundle.Overrides.Remove(ctx, entry.StorageKey); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s reset to default\n", name)
	return nil
}
