// pkg/catalog/schema.go
package catalog

// Intent is a single routable intent definition. Definitions are immutable
// after load; the scorer precompiles what it needs from them.
type Intent struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	Description  string   `json:"description,omitempty"`
	Keywords     []string `json:"keywords"`
	Triggers     []string `json:"triggers"`
	SemanticSeed string   `json:"semantic_seed"`
}

// Catalog is an ordered set of intents. Order matters: it is the tie-break
// order everywhere scores are equal.
type Catalog struct {
	Version     string   `json:"version,omitempty"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
	Intents     []Intent `json:"intents"`
}

// Get returns the intent with the given id, or nil if absent.
func (c *Catalog) Get(id string) *Intent {
	for i := range c.Intents {
		if c.Intents[i].ID == id {
			return &c.Intents[i]
		}
	}
	return nil
}

// Len reports the number of intents in the catalog.
func (c *Catalog) Len() int {
	return len(c.Intents)
}
