package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/patchwell/sidechat/pkg/config"
	"github.com/patchwell/sidechat/pkg/provider"
	"github.com/patchwell/sidechat/pkg/tools"
)

var indexCmd = &cobra.Command{
	Use:   "index <file-or-directory>...",
	Short: "Index documentation files into the local doc context collection",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		embedder, err := provider.NewOllamaEmbedder(cfg.Providers.Ollama.URL, cfg.Tools.DocContext.EmbeddingModel)
		if err != nil {
			return err
		}
		docContext, err := tools.NewDocContextTool(tools.DocContextConfig{
			CollectionName:   cfg.Tools.DocContext.Collection,
			PersistDirectory: cfg.Tools.DocContext.PersistDirectory,
			Embedder:         embedder,
		})
		if err != nil {
			return err
		}

		docs, err := collectDocuments(args)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no markdown or text files found")
		}

		if err := docContext.Index(cmd.Context(), docs); err != nil {
			return err
		}
		fmt.Printf("indexed %d documents into %s\n", len(docs), cfg.Tools.DocContext.Collection)
		return nil
	},
}

func collectDocuments(paths []string) ([]tools.Document, error) {
	var docs []tools.Document
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".md", ".txt":
			default:
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if len(strings.TrimSpace(string(content))) == 0 {
				return nil
			}
			docs = append(docs, tools.Document{
				ID:      uuid.NewString(),
				Content: string(content),
				Metadata: map[string]string{
					"path": path,
				},
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
