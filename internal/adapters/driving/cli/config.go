package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and change the configuration file",
	Long: `Reads and writes ~/.gphotos/config.toml. Values are checked before they
are saved. Environment variables (GPHOTOS_IDENTITY, GPHOTOS_TOKEN_MARGIN, ...)
override the file at run time.

Examples:
  gphotos config list
  gphotos config set token.margin 2m
  gphotos config set scopes https://www.googleapis.com/auth/photospicker.mediaitems.readonly
  gphotos config unset storage.backend`,
	Annotations: map[string]string{annotationConfigOnly: "true"},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a value so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every key",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings service")
	}
	s, err := settingsService.Get(args[0])
	if err != nil {
		return err
	}
	if !s.Set {
		cmd.Printf("%s is not set (default applies)\n", s.Key)
		return nil
	}
	cmd.Println(formatValue(s.Value))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings service")
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("%s updated in %s\n", args[0], settingsService.Path())
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return notConfigured("settings service")
	}
	if err := settingsService.Unset(args[0]); err != nil {
		return err
	}
	cmd.Printf("%s removed\n", args[0])
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings service")
	}
	settings := settingsService.List()
	if wantJSON() {
		values := make(map[string]any)
		for _, s := range settings {
			if s.Set {
				values[s.Key] = s.Value
			}
		}
		return printJSON(cmd, values)
	}

	for _, s := range settings {
		value := "(default)"
		if s.Set {
			value = formatValue(s.Value)
		}
		cmd.Printf("  %-28s %-24s %s\n", s.Key, truncate(value, 24), s.Description)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return notConfigured("settings service")
	}
	cmd.Println(settingsService.Path())
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
