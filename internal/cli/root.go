// Package cli implements the teleqwen command tree.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/TeleQwen/TeleQwen/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  _____    _       ___\n" +
		" |_   _|__| | ___ / _ \\__      _____ _ __\n" +
		"   | |/ _ \\ |/ _ \\ | | \\ \\ /\\ / / _ \\ '_ \\\n" +
		"   | |  __/ |  __/ |_| |\\ V  V /  __/ | | |\n" +
		"   |_|\\___|_|\\___|\\__\\_\\ \\_/\\_/ \\___|_| |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "teleqwen",
	Short: "TeleQwen - Personal agent bridge for the Qwen CLI",
	Long:  color.CyanString(logo) + "\nA persistent personal agent that bridges chat channels to a local reasoning CLI.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(taskCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
