// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Format selects the on-disk encoding of a catalog file. It is an explicit
// configuration value; there is no process-global mode.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOON Format = "toon"
)

var (
	// ErrInvalidTrigger is returned at load time when a trigger pattern does
	// not compile. Scoring never sees an invalid pattern.
	ErrInvalidTrigger = errors.New("INVALID_TRIGGER")

	// ErrUnknownFormat is returned for a format string other than json/toon.
	ErrUnknownFormat = errors.New("UNKNOWN_CATALOG_FORMAT")
)

// ParseFormat normalizes a configured format string.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "toon":
		return FormatTOON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// LoadFile reads, parses and validates a catalog file in the given format.
func LoadFile(path string, format Format) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, format)
}

// Parse decodes catalog bytes in the given format and validates the result.
func Parse(data []byte, format Format) (*Catalog, error) {
	var cat *Catalog
	var err error
	switch format {
	case FormatJSON:
		cat, err = ParseJSON(data)
	case FormatTOON:
		cat, err = ParseTOON(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// ParseJSON decodes the JSON catalog encoding. Accepts either the wrapped
// object form ({"intents": [...]}) or a bare intent array.
func ParseJSON(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err == nil && cat.Intents != nil {
		return &cat, nil
	}
	var intents []Intent
	if err := json.Unmarshal(data, &intents); err != nil {
		return nil, fmt.Errorf("parse catalog json: %w", err)
	}
	return &Catalog{Intents: intents}, nil
}

// EncodeJSON renders the catalog in the wrapped JSON form.
func (c *Catalog) EncodeJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate checks the whole catalog at load time: ids must be present and
// unique, and every trigger must compile. An empty catalog is valid here;
// emptiness is the scorer's error because it is only fatal when scoring is
// actually attempted.
func (c *Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Intents))
	for i, in := range c.Intents {
		if strings.TrimSpace(in.ID) == "" {
			return fmt.Errorf("intent at position %d: empty id", i)
		}
		if _, dup := seen[in.ID]; dup {
			return fmt.Errorf("duplicate intent id %q", in.ID)
		}
		seen[in.ID] = struct{}{}
		for _, pattern := range in.Triggers {
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("%w: intent %q pattern %q: %v", ErrInvalidTrigger, in.ID, pattern, err)
			}
		}
	}
	return nil
}
