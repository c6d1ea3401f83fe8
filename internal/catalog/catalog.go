package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"avatarforge/internal/domain"
)

// DefaultPageSize matches the five-item rows of the preview UI.
const DefaultPageSize = 5

//go:embed default.yaml
var defaultCatalog []byte

// Avatar is a preset avatar offered in the picker.
type Avatar struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Asset string `yaml:"asset" json:"asset"`
}

// Decoration is a catalog entry; see ToDomain.
type Decoration struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Asset       string `yaml:"asset" json:"asset"`
	Animated    *bool  `yaml:"animated,omitempty" json:"animated"`
}

// Category groups decorations released together.
type Category struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description" json:"description"`
	Items       []Decoration `yaml:"items" json:"items"`
}

// Catalog is the static list of presets and decorations.
type Catalog struct {
	Avatars    []Avatar   `yaml:"avatars" json:"avatars"`
	Categories []Category `yaml:"categories" json:"categories"`

	avatarIdx map[string]Avatar
	decoIdx   map[string]domain.Decoration
}

// Load reads a YAML catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if strings.TrimSpace(path) != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
	}
	return Parse(data)
}

// Parse decodes and indexes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	c.avatarIdx = make(map[string]Avatar, len(c.Avatars))
	for _, a := range c.Avatars {
		if a.ID == "" || a.Asset == "" {
			return errors.New("catalog: avatar requires id and asset")
		}
		if _, dup := c.avatarIdx[a.ID]; dup {
			return fmt.Errorf("catalog: duplicate avatar %q", a.ID)
		}
		c.avatarIdx[a.ID] = a
	}
	c.decoIdx = make(map[string]domain.Decoration)
	for _, cat := range c.Categories {
		for _, d := range cat.Items {
			if d.ID == "" || d.Asset == "" {
				return fmt.Errorf("catalog: decoration in %q requires id and asset", cat.Name)
			}
			if _, dup := c.decoIdx[d.ID]; dup {
				return fmt.Errorf("catalog: duplicate decoration %q", d.ID)
			}
			c.decoIdx[d.ID] = d.toDomain(cat.Name)
		}
	}
	return nil
}

// Avatar looks up a preset by id.
func (c *Catalog) Avatar(id string) (Avatar, bool) {
	a, ok := c.avatarIdx[id]
	return a, ok
}

// Decoration looks up a decoration by id.
func (c *Catalog) Decoration(id string) (domain.Decoration, bool) {
	d, ok := c.decoIdx[id]
	return d, ok
}

// Category returns the category at index i.
func (c *Catalog) Category(i int) (Category, bool) {
	if i < 0 || i >= len(c.Categories) {
		return Category{}, false
	}
	return c.Categories[i], true
}

// Decorations default to animated: the upstream assets are APNG loops.
func (d Decoration) toDomain(category string) domain.Decoration {
	animated := true
	if d.Animated != nil {
		animated = *d.Animated
	}
	return domain.Decoration{
		ID:       d.ID,
		Name:     d.Name,
		Category: category,
		AssetRef: d.Asset,
		Animated: animated,
	}
}
