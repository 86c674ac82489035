package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fluxbase-eu/fluxpack/cli/output"
	"github.com/fluxbase-eu/fluxpack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect build configuration",
	Long:  `View the effective build configuration after files, .env and FLUXPACK_* variables are applied.`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display current configuration",
	Long: `Show the effective build configuration.

Examples:
  fluxpack config view
  fluxpack config view --output json
  fluxpack config view --config ./build/fluxpack.yaml`,
	PreRunE: requireConfig,
	RunE:    runConfigView,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its dotted key.

Examples:
  fluxpack config get output.format
  fluxpack config get build.concurrency`,
	Args:    cobra.ExactArgs(1),
	PreRunE: requireConfig,
	RunE:    runConfigGet,
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configGetCmd)
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cfg := maskedConfig(GetConfig())

	formatter := GetFormatter()
	if formatter.Format == output.FormatTable {
		// Table mode shows the yaml form, which reads like the config file
		formatter.Format = output.FormatYAML
		defer func() { formatter.Format = output.FormatTable }()
	}
	return formatter.Print(cfg)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])

	tree, err := configTree(maskedConfig(GetConfig()))
	if err != nil {
		return err
	}

	var value any = tree
	for _, part := range strings.Split(key, ".") {
		section, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("unknown configuration key: %s", args[0])
		}
		if value, ok = section[part]; !ok {
			return fmt.Errorf("unknown configuration key: %s", args[0])
		}
	}

	formatter := GetFormatter()
	if _, ok := value.(map[string]any); ok {
		return formatter.Print(value)
	}
	formatter.PrintKeyValue(key, fmt.Sprintf("%v", value))
	return nil
}

// maskedConfig returns a copy of cfg with credentials hidden
func maskedConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	if masked.Storage.S3AccessKey != "" {
		masked.Storage.S3AccessKey = "****"
	}
	if masked.Storage.S3SecretKey != "" {
		masked.Storage.S3SecretKey = "****"
	}
	return &masked
}

// configTree converts cfg into nested maps keyed like the config file
func configTree(cfg *config.Config) (map[string]any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return tree, nil
}
