// Package catalog holds the fixed set of decision categories and definitions.
// The catalog is embedded at build time and never changes at runtime; it
// defines the identity space every piece of state is keyed by.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/insurewright/onboarding/internal/types"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Category groups related decisions.
type Category struct {
	Slug        string `yaml:"slug" json:"slug"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	Order       int    `yaml:"order" json:"order"`
}

// SelectOption is one choice of a select input or select column.
type SelectOption struct {
	Value       string `yaml:"value" json:"value"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ColumnType is the cell type of a data-table column.
type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
	ColumnSelect ColumnType = "select"
)

// TableColumn defines one column of a data-table input.
type TableColumn struct {
	Key      string         `yaml:"key" json:"key"`
	Label    string         `yaml:"label" json:"label"`
	Type     ColumnType     `yaml:"type" json:"type"`
	Options  []SelectOption `yaml:"options,omitempty" json:"options,omitempty"`
	Required bool           `yaml:"required,omitempty" json:"required,omitempty"`
}

// NumericValidation bounds a numeric input.
type NumericValidation struct {
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Step   *float64 `yaml:"step,omitempty" json:"step,omitempty"`
	Unit   string   `yaml:"unit,omitempty" json:"unit,omitempty"`
	Prefix string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Suffix string   `yaml:"suffix,omitempty" json:"suffix,omitempty"`
}

// Definition is the static description of one decision.
type Definition struct {
	ID                string             `yaml:"id" json:"id"`
	CategorySlug      string             `yaml:"category_slug" json:"categorySlug"`
	Title             string             `yaml:"title" json:"title"`
	Question          string             `yaml:"question" json:"question"`
	Context           string             `yaml:"context" json:"context"`
	InputType         types.InputType    `yaml:"input_type" json:"inputType"`
	Options           []SelectOption     `yaml:"options,omitempty" json:"options,omitempty"`
	TableColumns      []TableColumn      `yaml:"table_columns,omitempty" json:"tableColumns,omitempty"`
	NumericValidation *NumericValidation `yaml:"numeric_validation,omitempty" json:"numericValidation,omitempty"`
	Placeholder       string             `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Required          bool               `yaml:"required" json:"required"`
	Order             int                `yaml:"order" json:"order"`
	DependsOn         []string           `yaml:"depends_on,omitempty" json:"dependsOn,omitempty"`
}

// HasOption reports whether value is one of the definition's select options.
func (d Definition) HasOption(value string) bool {
	for _, o := range d.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Catalog is an immutable, ordered view over categories and definitions.
type Catalog struct {
	categories []Category
	decisions  []Definition
	byID       map[string]int
	bySlug     map[string]int
}

type catalogFile struct {
	Categories []Category   `yaml:"categories"`
	Decisions  []Definition `yaml:"decisions"`
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Load(embeddedCatalog)
})

// Default returns the embedded catalog. It panics if the embedded data is invalid,
// which the package tests rule out.
func Default() *Catalog {
	c, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load parses and validates a catalog from YAML.
func Load(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return New(f.Categories, f.Decisions)
}

// New builds a catalog from in-memory definitions.
func New(categories []Category, decisions []Definition) (*Catalog, error) {
	c := &Catalog{
		categories: append([]Category{}, categories...),
		byID:       make(map[string]int, len(decisions)),
		bySlug:     make(map[string]int, len(categories)),
	}

	sort.SliceStable(c.categories, func(i, j int) bool {
		return c.categories[i].Order < c.categories[j].Order
	})
	for i, cat := range c.categories {
		c.bySlug[cat.Slug] = i
	}

	// Decisions are kept in category order, then by their order within the category.
	c.decisions = append([]Definition{}, decisions...)
	sort.SliceStable(c.decisions, func(i, j int) bool {
		ci, cj := c.categoryRank(c.decisions[i].CategorySlug), c.categoryRank(c.decisions[j].CategorySlug)
		if ci != cj {
			return ci < cj
		}
		return c.decisions[i].Order < c.decisions[j].Order
	})
	for i, d := range c.decisions {
		c.byID[d.ID] = i
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) categoryRank(slug string) int {
	if i, ok := c.bySlug[slug]; ok {
		return i
	}
	return len(c.categories)
}

// Categories returns categories in display order.
func (c *Catalog) Categories() []Category {
	return append([]Category{}, c.categories...)
}

// Category looks up a category by slug.
func (c *Catalog) Category(slug string) (Category, bool) {
	i, ok := c.bySlug[slug]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// Decisions returns every definition, category order first.
func (c *Catalog) Decisions() []Definition {
	return append([]Definition{}, c.decisions...)
}

// Decision looks up a definition by id.
func (c *Catalog) Decision(id string) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.decisions[i], true
}

// DecisionsIn returns the definitions of one category in order.
func (c *Catalog) DecisionsIn(slug string) []Definition {
	var out []Definition
	for _, d := range c.decisions {
		if d.CategorySlug == slug {
			out = append(out, d)
		}
	}
	return out
}

// IDs returns every decision id in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.decisions))
	for i, d := range c.decisions {
		ids[i] = d.ID
	}
	return ids
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.decisions)
}

// Validate checks the structural rules of the catalog and reports every violation.
func (c *Catalog) Validate() error {
	var errs []error

	slugs := make(map[string]bool, len(c.categories))
	for _, cat := range c.categories {
		if cat.Slug == "" {
			errs = append(errs, errors.New("category with empty slug"))
			continue
		}
		if slugs[cat.Slug] {
			errs = append(errs, fmt.Errorf("duplicate category slug %q", cat.Slug))
		}
		slugs[cat.Slug] = true
	}

	ids := make(map[string]bool, len(c.decisions))
	required := make(map[string]bool, len(c.categories))
	for _, d := range c.decisions {
		if d.ID == "" {
			errs = append(errs, errors.New("decision with empty id"))
			continue
		}
		if ids[d.ID] {
			errs = append(errs, fmt.Errorf("duplicate decision id %q", d.ID))
		}
		ids[d.ID] = true

		if !slugs[d.CategorySlug] {
			errs = append(errs, fmt.Errorf("decision %s references unknown category %q", d.ID, d.CategorySlug))
		}
		if d.Title == "" || d.Question == "" {
			errs = append(errs, fmt.Errorf("decision %s needs a title and question", d.ID))
		}
		if !d.InputType.Valid() {
			errs = append(errs, fmt.Errorf("decision %s has unknown input type %q", d.ID, d.InputType))
		}
		switch d.InputType {
		case types.InputSingleSelect, types.InputMultiSelect:
			if len(d.Options) == 0 {
				errs = append(errs, fmt.Errorf("decision %s is a select without options", d.ID))
			}
		case types.InputDataTable:
			if len(d.TableColumns) == 0 {
				errs = append(errs, fmt.Errorf("decision %s is a data table without columns", d.ID))
			}
			for _, col := range d.TableColumns {
				if col.Key == "" || col.Label == "" {
					errs = append(errs, fmt.Errorf("decision %s has a column without key or label", d.ID))
				}
			}
		}
		if d.Required {
			required[d.CategorySlug] = true
		}
	}

	for _, cat := range c.categories {
		if !required[cat.Slug] {
			errs = append(errs, fmt.Errorf("category %s has no required decision", cat.Slug))
		}
	}

	return errors.Join(errs...)
}
