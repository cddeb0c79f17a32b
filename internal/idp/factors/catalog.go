// Package factors maps authentication context class references (ACRs)
// to the authentication method combinations (AMRs) that satisfy them.
// The mapping is configuration, loaded from a JSON document so
// deployments can describe their own factor inventory.
package factors

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/openauthority/idp/internal/idp/domain"
)

//go:embed defaults.json
var defaultsJSON []byte

// document is the on-disk shape: named AMR combinations plus the list
// of AMR names satisfying each ACR.
type document struct {
	AMR    map[string][]domain.AuthFactor `json:"amr"`
	ACRAMR map[string][]string            `json:"acr_amr"`
}

// Catalog resolves ACR values to factor combinations. Immutable after
// construction, safe for concurrent use.
type Catalog struct {
	amr    map[string][]domain.AuthFactor
	acrAMR map[string][]string
}

// Parse builds a catalog from a JSON mapping document. Every AMR name
// referenced by an ACR must be defined.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("factors: parse mapping: %w", err)
	}

	for acr, amrNames := range doc.ACRAMR {
		for _, name := range amrNames {
			if _, ok := doc.AMR[name]; !ok {
				return nil, fmt.Errorf("factors: acr %q references undefined amr %q", acr, name)
			}
		}
	}

	return &Catalog{amr: doc.AMR, acrAMR: doc.ACRAMR}, nil
}

// Load reads a mapping document from a file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("factors: read mapping: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in mapping.
func Default() *Catalog {
	c, err := Parse(defaultsJSON)
	if err != nil {
		panic(err)
	}
	return c
}

// AuthFactors returns one combination per satisfying AMR, in the order
// of the given ACR values. Unknown ACRs contribute nothing.
func (c *Catalog) AuthFactors(_ context.Context, acrValues []string) ([][]domain.AuthFactor, error) {
	var out [][]domain.AuthFactor
	for _, acr := range acrValues {
		for _, name := range c.acrAMR[acr] {
			combo := c.amr[name]
			out = append(out, append([]domain.AuthFactor(nil), combo...))
		}
	}
	return out, nil
}

// ACRValues returns all configured ACRs, sorted.
func (c *Catalog) ACRValues() []string {
	out := make([]string, 0, len(c.acrAMR))
	for acr := range c.acrAMR {
		out = append(out, acr)
	}
	sort.Strings(out)
	return out
}
