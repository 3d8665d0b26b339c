package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Long = fmt.Sprintf(`Tablechat %s

Conversational agent for tabular data, configured with HCL.

Define your model, datasets and storage in HCL configuration files,
then chat with your data from the terminal or over WebSocket.

Get started:
  tablechat verify <path>      Validate your configuration
  tablechat chat <platform>    Chat with a dataset
  tablechat serve              Serve the WebSocket API
  tablechat questions <platform>  Suggest questions to ask`, Version)
}
