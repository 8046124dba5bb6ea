package llm

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/models.yaml
var modelCatalogYAML []byte

// Catalog Philosophy:
//
// The catalog provides MODEL METADATA for routing, UX, and token ceilings.
// It does NOT validate requests - provider APIs are the source of truth.
// Entries may lag behind provider releases; deployments can override the
// embedded table with LoadCatalogFromFile or RegisterModel.

// StreamClass selects the streaming behavior a model requires.
type StreamClass string

const (
	// ClassChat is linear chat-style streaming: raw text deltas whose
	// in-order concatenation is the full response.
	ClassChat StreamClass = "chat"

	// ClassExtended is chat-style streaming behind an explicit beta opt-in
	// with a larger output-token ceiling.
	ClassExtended StreamClass = "extended"

	// ClassReasoning is typed-event streaming with interleaved reasoning
	// and answer channels.
	ClassReasoning StreamClass = "reasoning"
)

// ModelInfo describes one catalog entry.
type ModelInfo struct {
	Name         string      `yaml:"name"`
	Description  string      `yaml:"description"`
	Provider     ProviderID  `yaml:"provider"`
	Class        StreamClass `yaml:"class"`
	MaxTokens    int         `yaml:"max_tokens"`
	BetaFeatures []string    `yaml:"beta_features"`
}

type catalogFile struct {
	Version      string               `yaml:"version"`
	LastUpdated  string               `yaml:"last_updated"`
	DefaultModel string               `yaml:"default_model"`
	Models       map[string]ModelInfo `yaml:"models"`
}

// Catalog maps model identifiers to their metadata.
type Catalog struct {
	mu           sync.RWMutex
	models       map[string]ModelInfo
	defaultModel string
}

var (
	globalCatalog     *Catalog
	globalCatalogOnce sync.Once
)

// DefaultCatalog returns the catalog loaded from the embedded YAML (singleton).
func DefaultCatalog() *Catalog {
	globalCatalogOnce.Do(func() {
		c, err := parseCatalog(modelCatalogYAML)
		if err != nil {
			// The embedded document is compiled in; a parse failure is a
			// build defect, not a runtime condition.
			panic(fmt.Sprintf("llm: embedded model catalog invalid: %v", err))
		}
		globalCatalog = c
	})
	return globalCatalog
}

func parseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal model catalog: %w", err)
	}
	if file.DefaultModel == "" {
		return nil, fmt.Errorf("model catalog has no default_model")
	}
	if _, ok := file.Models[file.DefaultModel]; !ok {
		return nil, fmt.Errorf("default model %q not present in catalog", file.DefaultModel)
	}
	return &Catalog{
		models:       file.Models,
		defaultModel: file.DefaultModel,
	}, nil
}

// Model returns the catalog entry for a model id.
func (c *Catalog) Model(id string) (ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.models[id]
	return info, ok
}

// Resolve returns the entry for id, falling back to the default model when
// id is unknown. The returned string is the model id actually selected.
func (c *Catalog) Resolve(id string) (string, ModelInfo) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if info, ok := c.models[id]; ok {
		return id, info
	}
	return c.defaultModel, c.models[c.defaultModel]
}

// DefaultModel returns the catalog's default model id.
func (c *Catalog) DefaultModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultModel
}

// Models returns a copy of all catalog entries keyed by model id.
func (c *Catalog) Models() map[string]ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]ModelInfo, len(c.models))
	for id, info := range c.models {
		out[id] = info
	}
	return out
}

// RegisterModel programmatically adds or replaces a catalog entry.
func (c *Catalog) RegisterModel(id string, info ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[id] = info
}

// LoadCatalogFromFile replaces the catalog contents from a YAML file.
// This allows deployments to override the embedded table with custom data.
func (c *Catalog) LoadCatalogFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}

	loaded, err := parseCatalog(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = loaded.models
	c.defaultModel = loaded.defaultModel
	return nil
}
