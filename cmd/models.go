package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/patchwell/sidechat/pkg/config"
	"github.com/patchwell/sidechat/pkg/provider"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the known model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		creds := provider.Credentials{
			OpenAI:    cfg.Providers.OpenAI.APIKey,
			Anthropic: cfg.Providers.Anthropic.APIKey,
			Google:    cfg.Providers.Google.APIKey,
		}

		for _, m := range provider.Catalog() {
			marker := " "
			if m.ID == cfg.DefaultModel {
				marker = "*"
			}
			availability := "available"
			if _, ok := provider.ResolveCredential(m, creds); !ok {
				availability = "needs credential"
			}
			vision := ""
			if m.Vision {
				vision = " vision"
			}
			fmt.Printf("%s %-30s %-10s%s  (%s)\n", marker, m.ID, m.Provider, vision, availability)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
