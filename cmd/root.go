package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the inboxpilot application
var rootCmd = &cobra.Command{
	Use:   "inboxpilot",
	Short: "Personal productivity assistant over email and calendar",
	Long: `inboxpilot is a reasoning assistant for your Gmail inbox and Google
Calendar. It answers natural-language questions by dispatching a closed
set of read tools against your accounts.

It can run as:
  - A one-shot chat CLI (inboxpilot chat "...")
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxpilot version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
