package provider

import "strings"

// Type tags a model with the provider family that serves it.
type Type string

const (
	TypeOllama    Type = "ollama"
	TypeOpenAI    Type = "openai"
	TypeAnthropic Type = "anthropic"
	TypeGoogle    Type = "google"
)

// Model describes one selectable model.
type Model struct {
	ID       string
	Name     string
	Provider Type
	Vision   bool
}

// Credentials holds the available provider API keys. Keys are opaque
// strings supplied by configuration; they are passed through, never
// validated here.
type Credentials struct {
	OpenAI    string
	Anthropic string
	Google    string
}

// For returns the credential stored for a provider family.
func (c Credentials) For(t Type) string {
	switch t {
	case TypeOpenAI:
		return c.OpenAI
	case TypeAnthropic:
		return c.Anthropic
	case TypeGoogle:
		return c.Google
	default:
		return ""
	}
}

// RequiredCredential maps a provider type to the named credential it needs.
// Ollama is local and needs none.
func RequiredCredential(t Type) (name string, required bool) {
	switch t {
	case TypeOpenAI:
		return "openai.api_key", true
	case TypeAnthropic:
		return "anthropic.api_key", true
	case TypeGoogle:
		return "google.api_key", true
	default:
		return "", false
	}
}

// ResolveCredential returns the credential to use for a model. The second
// return is false when a required credential is absent or blank, in which
// case no send may proceed.
func ResolveCredential(m Model, creds Credentials) (string, bool) {
	_, required := RequiredCredential(m.Provider)
	if !required {
		return "", true
	}
	key := strings.TrimSpace(creds.For(m.Provider))
	if key == "" {
		return "", false
	}
	return key, true
}

var catalog = []Model{
	{ID: "llama3.2:latest", Name: "Llama 3.2", Provider: TypeOllama},
	{ID: "qwen3:latest", Name: "Qwen 3", Provider: TypeOllama},
	{ID: "llava:latest", Name: "LLaVA", Provider: TypeOllama, Vision: true},
	{ID: "gpt-4o", Name: "GPT-4o", Provider: TypeOpenAI, Vision: true},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini", Provider: TypeOpenAI, Vision: true},
	{ID: "o3-mini", Name: "o3-mini", Provider: TypeOpenAI},
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Provider: TypeAnthropic, Vision: true},
	{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: TypeAnthropic},
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: TypeGoogle, Vision: true},
}

// Catalog returns the built-in model definitions.
func Catalog() []Model {
	models := make([]Model, len(catalog))
	copy(models, catalog)
	return models
}

// Lookup finds a catalog model by id.
func Lookup(id string) (Model, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// LookupOrOllama finds a catalog model, falling back to treating an unknown
// id as a local Ollama model without vision support.
func LookupOrOllama(id string) Model {
	if m, ok := Lookup(id); ok {
		return m
	}
	return Model{ID: id, Name: id, Provider: TypeOllama}
}
