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

var questionsConfigPath string
var questionsCount int

var questionsCmd = &cobra.Command{
	Use:   "questions [platform]",
	Short: "Suggest questions to ask about a dataset",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cfg, err := config.LoadAndValidate(questionsConfigPath)
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

		questions, err := a.SuggestQuestions(ctx, questionsCount)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		for _, q := range questions {
			fmt.Println(q)
		}
	},
}

func init() {
	rootCmd.AddCommand(questionsCmd)
	questionsCmd.Flags().StringVarP(&questionsConfigPath, "config", "c", ".", "Path to config file or directory")
	questionsCmd.Flags().IntVarP(&questionsCount, "count", "n", 3, "Number of questions to suggest")
}
