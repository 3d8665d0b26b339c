package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"tablechat/agent"
	"tablechat/checkpoint"
	"tablechat/config"
)

var historyConfigPath string
var historyClear bool

var historyCmd = &cobra.Command{
	Use:   "history [platform] [session_id]",
	Short: "Show or clear the recorded conversation for a session",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cfg, err := config.LoadAndValidate(historyConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := hclog.New(&hclog.LoggerOptions{
			Name:   "tablechat",
			Level:  hclog.Warn,
			Output: os.Stderr,
		})

		saver, err := checkpoint.NewSaver(ctx, cfg.Storage, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening checkpoint store: %v\n", err)
			os.Exit(1)
		}

		registry, err := agent.NewRegistry(ctx, cfg, saver, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer registry.Close()

		a, err := registry.Get(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		session := args[1]

		if historyClear {
			if err := a.ClearChatHistory(ctx, session); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("History cleared for session %s\n", session)
			return
		}

		msgs, err := a.GetChatHistory(ctx, session)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(msgs) == 0 {
			fmt.Println("No history for this session")
			return
		}

		for _, m := range msgs {
			fmt.Printf("[%s] %s\n", m.Role, m.Content)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVarP(&historyConfigPath, "config", "c", ".", "Path to config file or directory")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Clear the session instead of printing it")
}
