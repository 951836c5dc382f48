package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// probeTimeout bounds the pre-flight reachability check. The main stream has
// no timeout; only the probe is clamped.
const probeTimeout = 3 * time.Second

var probeClient = &http.Client{Timeout: probeTimeout}

// probeTargets maps each provider family to a cheap reachability endpoint.
func probeTarget(t Type, ollamaURL string) string {
	switch t {
	case TypeOllama:
		return ollamaURL
	case TypeOpenAI:
		return "https://api.openai.com/v1/models"
	case TypeAnthropic:
		return "https://api.anthropic.com"
	case TypeGoogle:
		return "https://generativelanguage.googleapis.com"
	default:
		return ""
	}
}

// Preflight checks that the provider serving a model is reachable at all.
// Any HTTP response, including an auth rejection, counts as reachable; only
// transport-level failure is a connectivity problem.
func Preflight(ctx context.Context, m Model, ollamaURL string) error {
	target := probeTarget(m.Provider, ollamaURL)
	if target == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider %s unreachable: %w", m.Provider, err)
	}
	resp.Body.Close()
	return nil
}
