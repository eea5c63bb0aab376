package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soyeahso/crewbuilder/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the config file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the value stored at a dotted key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRawConfig(cmd.OutOrStdout(), args[0], false, func(raw map[string]any, key config.KeyPath) (string, error) {
					v, ok := key.Lookup(raw)
					if !ok {
						return "", fmt.Errorf("key %q not found", key)
					}
					return "", printValue(cmd.OutOrStdout(), v)
				})
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a value at a dotted key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				v := parseValue(args[1])
				return withRawConfig(cmd.OutOrStdout(), args[0], true, func(raw map[string]any, key config.KeyPath) (string, error) {
					key.Assign(raw, v)
					return fmt.Sprintf("Set %s = %v", key, v), nil
				})
			},
		},
		&cobra.Command{
			Use:   "unset <key>",
			Short: "Remove the value at a dotted key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRawConfig(cmd.OutOrStdout(), args[0], true, func(raw map[string]any, key config.KeyPath) (string, error) {
					if !key.Delete(raw) {
						return "", fmt.Errorf("key %q not found", key)
					}
					return "Unset " + key.String(), nil
				})
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
			},
		},
	)
	return cmd
}

// withRawConfig loads the config file as a generic tree and runs fn on it.
// When save is set the tree is written back and fn's message printed.
func withRawConfig(out io.Writer, rawKey string, save bool, fn func(map[string]any, config.KeyPath) (string, error)) error {
	key, err := config.ParseKeyPath(rawKey)
	if err != nil {
		return err
	}
	raw, err := config.LoadRaw(paths.Config)
	if err != nil {
		return err
	}
	msg, err := fn(raw, key)
	if err != nil || !save {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	if err := config.SaveRaw(paths.Config, raw); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, msg)
	return err
}

// printValue prints scalars bare and tables as YAML.
func printValue(w io.Writer, v any) error {
	switch v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

// parseValue reads s as a YAML scalar so "19000" becomes an int and "true" a
// bool. Anything that is not a plain number or bool stays a string.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case int, float64, bool:
		return v
	}
	return s
}
