package capability

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogEntry is one recipe known to a Catalog.
type CatalogEntry struct {
	Name         string   `yaml:"name"`
	Aliases      []string `yaml:"aliases"`
	SourceURL    string   `yaml:"source_url"`
	Ingredients  []string `yaml:"ingredients"`
	Instructions []string `yaml:"instructions"`
	PrepTime     string   `yaml:"prep_time"`
	CookTime     string   `yaml:"cook_time"`
	Servings     string   `yaml:"servings"`
}

// Catalog verifies candidates against a fixed list of curated recipes.
// Names match case-insensitively against the entry name or its aliases.
type Catalog struct {
	entries map[string]CatalogEntry
}

// NewCatalog indexes entries. Entries without a name or source are rejected
// because a verified record must carry both.
func NewCatalog(entries []CatalogEntry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]CatalogEntry)}
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("catalog entry %d: missing name", i)
		}
		if strings.TrimSpace(e.SourceURL) == "" {
			return nil, fmt.Errorf("catalog entry %q: missing source_url", e.Name)
		}
		for _, name := range append([]string{e.Name}, e.Aliases...) {
			c.entries[normalize(name)] = e
		}
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog: a top-level "recipes" list.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var doc struct {
		Recipes []CatalogEntry `yaml:"recipes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return NewCatalog(doc.Recipes)
}

// Len returns the number of distinct lookup names.
func (c *Catalog) Len() int { return len(c.entries) }

// Verify implements Verifier. Unknown candidates are answered with
// Verified false and a reason, not an error.
func (c *Catalog) Verify(ctx context.Context, candidate Candidate) (Verification, error) {
	if err := ctx.Err(); err != nil {
		return Verification{}, err
	}

	e, ok := c.entries[normalize(candidate.Name)]
	if !ok {
		return Verification{
			Name:   candidate.Name,
			Reason: fmt.Sprintf("no curated recipe named %q", candidate.Name),
		}, nil
	}

	return Verification{
		Verified:     true,
		Name:         e.Name,
		SourceURL:    e.SourceURL,
		Ingredients:  append([]string(nil), e.Ingredients...),
		Instructions: append([]string(nil), e.Instructions...),
		PrepTime:     e.PrepTime,
		CookTime:     e.CookTime,
		Servings:     e.Servings,
	}, nil
}

func normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
