package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tablechat/config"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify that the configuration is valid",
	Long:  `Verify parses and validates the HCL configuration files. Path can be a file or directory.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath := args[0]
		cfg, err := config.LoadAndValidate(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Check for unset variables
		var warnings []string
		for _, v := range cfg.Variables {
			resolved, _ := config.ResolveVariableValue(&v)
			if resolved == "" && v.Default == "" {
				warnings = append(warnings, fmt.Sprintf("variable '%s' has no default and no value set", v.Name))
			}
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Found %d model(s)\n", len(cfg.Models))
		for _, m := range cfg.Models {
			fmt.Printf("  - %s (provider: %s, model: %s, fallback: %s)\n", m.Name, m.Provider, m.ResolvedDefault(), m.ResolvedFallback())
		}
		fmt.Printf("Found %d variable(s)\n", len(cfg.Variables))
		for _, v := range cfg.Variables {
			resolved, _ := config.ResolveVariableValue(&v)
			if v.Secret {
				if resolved != "" {
					fmt.Printf("  - %s (secret, set)\n", v.Name)
				} else {
					fmt.Printf("  - %s (secret, not set)\n", v.Name)
				}
			} else {
				fmt.Printf("  - %s = %q\n", v.Name, resolved)
			}
		}
		fmt.Printf("Found %d platform(s)\n", len(cfg.Platforms))
		for _, p := range cfg.Platforms {
			fmt.Printf("  - %s (database: %s, schema: %s, language: %s)\n", p.Name, p.Database, p.SchemaFile, p.Language)
		}
		fmt.Printf("Storage: %s", cfg.Storage.Backend)
		switch cfg.Storage.Backend {
		case "sqlite":
			fmt.Printf(" (%s)", cfg.Storage.Path)
		case "postgres":
			fmt.Printf(" (mode: %s, pool: %d)", cfg.Storage.Mode, cfg.Storage.PoolSize)
		}
		fmt.Println()
		fmt.Printf("Settings: max_retries=%d, execution_timeout=%ds, high_reliability=%t\n",
			cfg.Settings.MaxRetries, cfg.Settings.ExecutionTimeoutSecs, cfg.Settings.HighReliability)

		if len(warnings) > 0 {
			fmt.Printf("\nWarnings:\n")
			for _, w := range warnings {
				fmt.Printf("  - %s\n", w)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
