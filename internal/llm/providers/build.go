// Package providers wires concrete provider implementations into a registry
// based on which credentials are available.
package providers

import (
	"log/slog"
	"os"

	"github.com/promptdeck/promptdeck/internal/llm"
	"github.com/promptdeck/promptdeck/internal/llm/providers/anthropic"
	"github.com/promptdeck/promptdeck/internal/llm/providers/openaicompat"
	"github.com/promptdeck/promptdeck/internal/llm/providers/reasoning"
	"github.com/promptdeck/promptdeck/internal/llm/providers/sim"
)

// Build constructs one provider per available credential. A missing
// credential only disables that provider family; the simulation provider is
// always present so the service can run with no keys at all.
func Build(creds llm.Credentials) []llm.Provider {
	list := []llm.Provider{sim.New()}

	if creds.Anthropic != "" {
		p, err := anthropic.New(creds.Anthropic)
		if err != nil {
			slog.Warn("failed to initialize anthropic provider", "error", err)
		} else {
			list = append(list, p)
		}
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, anthropic models disabled")
	}

	if creds.OpenAI != "" {
		p, err := openaicompat.NewOpenAI(creds.OpenAI)
		if err != nil {
			slog.Warn("failed to initialize openai provider", "error", err)
		} else {
			list = append(list, p)
		}

		r, err := reasoning.New(creds.OpenAI)
		if err != nil {
			slog.Warn("failed to initialize reasoning provider", "error", err)
		} else {
			list = append(list, r)
		}
	} else {
		slog.Warn("OPENAI_API_KEY not set, openai and reasoning models disabled")
	}

	if creds.XAI != "" {
		p, err := openaicompat.NewXAI(creds.XAI)
		if err != nil {
			slog.Warn("failed to initialize xai provider", "error", err)
		} else {
			list = append(list, p)
		}
	} else {
		slog.Warn("XAI_API_KEY not set, xai models disabled")
	}

	return list
}

// CredentialsFromEnv reads provider API keys from the environment.
func CredentialsFromEnv() llm.Credentials {
	return llm.Credentials{
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		XAI:       os.Getenv("XAI_API_KEY"),
	}
}

// NewRegistry builds a registry populated from the given credentials.
func NewRegistry(creds llm.Credentials) *llm.Registry {
	reg := llm.NewRegistry()
	for _, p := range Build(creds) {
		reg.Register(p)
	}
	return reg
}
