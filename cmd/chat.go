package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patchwell/sidechat/pkg/chat"
	"github.com/patchwell/sidechat/pkg/config"
	"github.com/patchwell/sidechat/pkg/llmerror"
	"github.com/patchwell/sidechat/pkg/logger"
	"github.com/patchwell/sidechat/pkg/provider"
	"github.com/patchwell/sidechat/pkg/session"
	"github.com/patchwell/sidechat/pkg/storage"
	"github.com/patchwell/sidechat/pkg/store"
	"github.com/patchwell/sidechat/pkg/tools"
)

// chatPrinter tracks how much assistant text has been echoed so streamed
// snapshots print incrementally.
type chatPrinter struct {
	printed int
}

func (p *chatPrinter) reset() {
	p.printed = 0
}

func (p *chatPrinter) render(conv chat.Conversation) {
	idx := conv.LastAssistantIndex()
	if idx < 0 {
		return
	}
	text := conv.Messages[idx].Text()
	if len(text) > p.printed {
		fmt.Print(text[p.printed:])
		p.printed = len(text)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	st, err := buildStore(cmd, cfg)
	if err != nil {
		return err
	}
	if err := st.Hydrate(); err != nil {
		return err
	}

	continueLast, _ := cmd.Flags().GetBool("continue")
	if !continueLast || st.CurrentID() == "" {
		if _, err := st.NewConversation(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("sidechat: type a message, or /new, /list, /switch <id>, /retry, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := handleCommand(ctx, st, line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		if err := st.SendMessage(ctx, "", session.Input{Text: line}); err != nil {
			var cerr *llmerror.Error
			if errors.As(err, &cerr) {
				fmt.Printf("\n[%s] %s", cerr.Kind, cerr.Message)
				if cerr.ShouldRetry() {
					fmt.Print(" (use /retry)")
				}
				fmt.Println()
				continue
			}
			return err
		}
		fmt.Println()
	}
}

func handleCommand(ctx context.Context, st *store.Store, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/new":
		_, err := st.NewConversation()
		return false, err
	case "/list":
		metas, err := st.Conversations()
		if err != nil {
			return false, err
		}
		for _, meta := range metas {
			marker := " "
			if meta.ID == st.CurrentID() {
				marker = "*"
			}
			fmt.Printf("%s %s  %s (%d messages)\n", marker, meta.ID, meta.Title, meta.MessageCount)
		}
		return false, nil
	case "/switch":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: /switch <id>")
		}
		_, err := st.Switch(fields[1])
		return false, err
	case "/retry":
		sess, ok := st.Current()
		if !ok {
			return false, fmt.Errorf("no conversation selected")
		}
		err := sess.Reload(ctx)
		fmt.Println()
		return false, err
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

func buildStore(cmd *cobra.Command, cfg *config.Config) (*store.Store, error) {
	modelID := cfg.DefaultModel
	if flagModel, _ := cmd.Flags().GetString("model"); flagModel != "" {
		modelID = flagModel
	}
	model := provider.LookupOrOllama(modelID)

	creds := provider.Credentials{
		OpenAI:    cfg.Providers.OpenAI.APIKey,
		Anthropic: cfg.Providers.Anthropic.APIKey,
		Google:    cfg.Providers.Google.APIKey,
	}
	if _, ok := provider.ResolveCredential(model, creds); !ok {
		name, _ := provider.RequiredCredential(model.Provider)
		return nil, fmt.Errorf("model %s requires the %s credential to be configured", model.ID, name)
	}

	fileStore, err := storage.NewFileStore(cfg.Storage.Directory)
	if err != nil {
		return nil, err
	}

	registry, err := buildToolRegistry(cfg)
	if err != nil {
		return nil, err
	}

	printer := &chatPrinter{}
	var st *store.Store
	st = store.New(store.Options{
		Gateway:      provider.NewLangChainGateway(cfg.Providers.Ollama.URL),
		ChatStore:    fileStore,
		Model:        model,
		Credentials:  creds,
		Tools:        asProviderTools(registry.Select(cfg.Tools.Enabled)),
		SystemPrompt: cfg.SystemPrompt,
		OllamaURL:    cfg.Providers.Ollama.URL,
		OnChange: func(conversationID string) {
			if conversationID != st.CurrentID() {
				return
			}
			sess, ok := st.Current()
			if !ok {
				return
			}
			conv := sess.Conversation()
			switch conv.Status {
			case chat.StatusSubmitted:
				printer.reset()
			case chat.StatusStreaming, chat.StatusReady:
				printer.render(conv)
			}
		},
	})
	return st, nil
}

func buildToolRegistry(cfg *config.Config) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	fetch := tools.NewWebFetchTool(cfg.Tools.WebFetch.Timeout, cfg.Tools.WebFetch.MaxBodySize)
	if err := registry.Register(tools.Definition{
		ID:             "web_fetch",
		Label:          "Web fetch",
		Description:    fetch.Description(),
		DefaultEnabled: true,
	}, fetch); err != nil {
		return nil, err
	}

	lookup := tools.NewDocLookupTool(cfg.Tools.DocLookup.BaseURL, cfg.Tools.WebFetch.Timeout)
	if err := registry.Register(tools.Definition{
		ID:             "doc_lookup",
		Label:          "Documentation lookup",
		Description:    lookup.Description(),
		DefaultEnabled: true,
	}, lookup); err != nil {
		return nil, err
	}

	search, err := tools.NewWebSearchTool(5)
	if err != nil {
		logger.Warn("web search unavailable: %v", err)
	} else if err := registry.Register(tools.Definition{
		ID:          "web_search",
		Label:       "Web search",
		Description: search.Description(),
	}, search); err != nil {
		return nil, err
	}

	if docContext, err := buildDocContext(cfg); err != nil {
		logger.Warn("doc context unavailable: %v", err)
	} else if docContext != nil {
		if err := registry.Register(tools.Definition{
			ID:          "doc_context",
			Label:       "Documentation context",
			Description: docContext.Description(),
		}, docContext); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func buildDocContext(cfg *config.Config) (*tools.DocContextTool, error) {
	if cfg.Tools.DocContext.EmbeddingModel == "" {
		return nil, nil
	}
	embedder, err := provider.NewOllamaEmbedder(cfg.Providers.Ollama.URL, cfg.Tools.DocContext.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	return tools.NewDocContextTool(tools.DocContextConfig{
		CollectionName:   cfg.Tools.DocContext.Collection,
		PersistDirectory: cfg.Tools.DocContext.PersistDirectory,
		Embedder:         embedder,
	})
}

func asProviderTools(selected []tools.Tool) []provider.Tool {
	out := make([]provider.Tool, len(selected))
	for i, t := range selected {
		out[i] = t
	}
	return out
}

