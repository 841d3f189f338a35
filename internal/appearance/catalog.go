package appearance

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Part struct {
	Name    string   `yaml:"name" json:"name"`
	Options []string `yaml:"options" json:"options"`
}

// Catalog is the part-count contract shared by the lobby and the next phase.
type Catalog struct {
	Parts []Part `yaml:"parts" json:"parts"`
}

func DefaultCatalog() *Catalog {
	return &Catalog{Parts: []Part{
		{Name: "Body", Options: []string{"Classic", "Slim", "Heavy"}},
		{Name: "Eyes", Options: []string{"Round", "Narrow", "Visor", "Cyclops"}},
		{Name: "Gloves", Options: []string{"None", "Leather", "Gauntlet", "Claws"}},
		{Name: "Hat", Options: []string{"None", "Cap", "Helmet", "Crown"}},
	}}
}

// LoadCatalog reads a YAML catalog. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Parts) == 0 {
		return nil, errors.New("catalog has no parts")
	}
	for i, p := range c.Parts {
		if p.Name == "" {
			return nil, fmt.Errorf("catalog part %d has no name", i)
		}
	}
	return &c, nil
}

func (c *Catalog) PartCount() int { return len(c.Parts) }

func (c *Catalog) Default() Encoding { return Default(c.PartCount()) }

// Parse decodes text against the catalog and rejects out-of-range option indices.
// Parts that list no options accept any non-negative index.
func (c *Catalog) Parse(text string) (Encoding, error) {
	enc, err := Parse(text, c.PartCount())
	if err != nil {
		return nil, err
	}
	if err := c.Validate(enc); err != nil {
		return nil, err
	}
	return enc, nil
}

func (c *Catalog) Validate(enc Encoding) error {
	if len(enc) != c.PartCount() {
		return fmt.Errorf("%w: got %d indices, want %d", ErrInvalid, len(enc), c.PartCount())
	}
	for i, idx := range enc {
		opts := len(c.Parts[i].Options)
		if idx < 0 || (opts > 0 && idx >= opts) {
			return fmt.Errorf("%w: %s option %d out of range", ErrInvalid, c.Parts[i].Name, idx)
		}
	}
	return nil
}
