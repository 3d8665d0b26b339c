package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tablechat",
	Short: "Tablechat answers questions about tabular data",
	Long:  `Tablechat is a conversational agent that turns natural-language questions into SQL, runs it against your datasets, and explains the results.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Welcome to tablechat! Use --help to see available commands.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
