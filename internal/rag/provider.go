package rag

import (
	"fmt"
	"strings"
)

// Provider is the closed set of embedding provider variants. Each variant owns a vector slot in the
// chunk store; adding a provider means adding a constant here.
type Provider uint8

const (
	ProviderOpenAI Provider = iota + 1
	ProviderOllama
	ProviderBGE
)

var providerInfo = map[Provider]struct {
	name string
	dims int
}{
	ProviderOpenAI: {name: "openai", dims: 1536},
	ProviderOllama: {name: "ollama", dims: 768},
	ProviderBGE:    {name: "bge", dims: 1024},
}

// AllProviders lists the variants in their canonical order.
func AllProviders() []Provider {
	return []Provider{ProviderOpenAI, ProviderOllama, ProviderBGE}
}

func (p Provider) String() string {
	if info, ok := providerInfo[p]; ok {
		return info.name
	}
	return fmt.Sprintf("provider(%d)", uint8(p))
}

// Dimensions returns the default vector size of the variant.
func (p Provider) Dimensions() int {
	return providerInfo[p].dims
}

// Valid reports whether p is a known variant.
func (p Provider) Valid() bool {
	_, ok := providerInfo[p]
	return ok
}

// ParseProvider maps a configured name to its variant.
func ParseProvider(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range AllProviders() {
		if providerInfo[p].name == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown embedding provider %q", name)
}
