package breeds

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v2"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrEmptyCatalog = errors.New("breed catalog has no entries")

type Record struct {
	Label          string   `yaml:"label"`
	Name           string   `yaml:"name"`
	Population     string   `yaml:"population"`
	MilkProduction string   `yaml:"milk_production"`
	Lifespan       string   `yaml:"lifespan"`
	Strengths      []string `yaml:"strengths"`
	Image          string   `yaml:"image"`
}

func (r Record) validate() error {
	switch {
	case r.Label == "":
		return fmt.Errorf("breed entry is missing a label")
	case r.Name == "":
		return fmt.Errorf("breed '%s' is missing a name", r.Label)
	case r.Population == "":
		return fmt.Errorf("breed '%s' is missing a population", r.Label)
	case r.MilkProduction == "":
		return fmt.Errorf("breed '%s' is missing a milk production range", r.Label)
	case r.Lifespan == "":
		return fmt.Errorf("breed '%s' is missing a lifespan range", r.Label)
	case len(r.Strengths) == 0:
		return fmt.Errorf("breed '%s' has no strengths", r.Label)
	case r.Image == "":
		return fmt.Errorf("breed '%s' is missing a reference image", r.Label)
	}
	for _, s := range r.Strengths {
		if s == "" {
			return fmt.Errorf("breed '%s' has an empty strength", r.Label)
		}
	}
	return nil
}

func (r Record) clone() Record {
	r.Strengths = slices.Clone(r.Strengths)
	return r
}

// Catalog is the read-only table of known breeds. The first record is the
// fallback returned for any label the catalog does not contain.
type Catalog struct {
	records []Record
	index   map[string]int
}

type catalogFile struct {
	Breeds []Record `yaml:"breeds"`
}

func NewCatalog(records []Record) (*Catalog, error) {
	if len(records) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}

	for _, r := range records {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, exists := c.index[r.Label]; exists {
			return nil, fmt.Errorf("duplicate breed label '%s'", r.Label)
		}
		c.index[r.Label] = len(c.records)
		c.records = append(c.records, r.clone())
	}

	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing breed catalog: %w", err)
	}
	return NewCatalog(file.Breeds)
}

// Load reads a catalog from path, or returns the embedded catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading breed catalog '%s': %w", path, err)
	}

	return Parse(data)
}

func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

func (c *Catalog) Fallback() Record {
	return c.records[0].clone()
}

func (c *Catalog) Lookup(label string) (Record, bool) {
	i, ok := c.index[label]
	if !ok {
		return Record{}, false
	}
	return c.records[i].clone(), true
}

// Resolve never fails: unknown or empty labels map to the fallback record and
// are reported with matched false.
func (c *Catalog) Resolve(label string) (record Record, matched bool) {
	if r, ok := c.Lookup(label); ok {
		return r, true
	}
	return c.Fallback(), false
}

// WithoutImages returns a copy of the catalog with every reference image
// cleared, for deployments that serve no assets.
func (c *Catalog) WithoutImages() *Catalog {
	out := &Catalog{
		records: make([]Record, 0, len(c.records)),
		index:   make(map[string]int, len(c.index)),
	}
	for i, r := range c.records {
		r = r.clone()
		r.Image = ""
		out.records = append(out.records, r)
		out.index[r.Label] = i
	}
	return out
}

func (c *Catalog) Records() []Record {
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.clone())
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.records)
}
