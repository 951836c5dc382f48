package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchwell/sidechat/pkg/config"
	"github.com/patchwell/sidechat/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sidechat",
	Short: "Side-panel chat engine",
	Long:  `Streaming chat client with selectable model providers, tools, and locally persisted conversations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(cfgFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logger.Init(); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	RunE: runChat,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.BuildSettingsPath("settings.yaml"), "config file path")
	rootCmd.Flags().StringP("model", "m", "", "model id to chat with")
	rootCmd.Flags().Bool("continue", false, "continue the last conversation instead of starting a new one")
}
