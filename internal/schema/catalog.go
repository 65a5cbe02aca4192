package schema

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/generyand/sinag-sub000/internal/errors"
)

// Indicator is one assessable item of the catalog. Indicators form a
// hierarchy; only leaf indicators carry forms and calculation schemas.
type Indicator struct {
	ID          string            `yaml:"id" json:"id"`
	ParentID    string            `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	AreaID      int               `yaml:"area" json:"area"`
	Code        string            `yaml:"code,omitempty" json:"code,omitempty"`
	Name        string            `yaml:"name" json:"name"`
	Form        FormSchema        `yaml:"form,omitempty" json:"form,omitempty"`
	Calculation CalculationSchema `yaml:"calculation,omitempty" json:"calculation,omitempty"`
}

// Catalog is the resolved set of indicator definitions for one cycle year.
type Catalog struct {
	Year       int
	indicators map[string]Indicator
	children   map[string][]string
	byArea     map[int][]string
	ordered    []string
}

type catalogFile struct {
	Year       int         `yaml:"year"`
	Indicators []Indicator `yaml:"indicators"`
}

// LoadCatalog parses every *.yaml file under root in the given filesystem
// and merges them into one catalog. Files are processed in lexical order
// so the catalog is deterministic.
func LoadCatalog(fsys fs.FS, root string) (*Catalog, error) {
	if root == "" {
		root = "."
	}
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, errors.Wrap(errors.CodeCatalogInvalid, "read catalog dir", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)

	catalog := &Catalog{
		indicators: make(map[string]Indicator),
		children:   make(map[string][]string),
		byArea:     make(map[int][]string),
	}
	for _, name := range files {
		path := name
		if root != "." {
			path = root + "/" + name
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, errors.Wrap(errors.CodeCatalogInvalid, fmt.Sprintf("read catalog file %s", name), err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, errors.Wrap(errors.CodeCatalogInvalid, fmt.Sprintf("parse catalog file %s", name), err)
		}
		if file.Year != 0 {
			if catalog.Year != 0 && catalog.Year != file.Year {
				return nil, errors.New(errors.CodeCatalogInvalid, fmt.Sprintf("catalog file %s declares year %d, expected %d", name, file.Year, catalog.Year))
			}
			catalog.Year = file.Year
		}
		for _, ind := range file.Indicators {
			if err := catalog.add(ind); err != nil {
				return nil, errors.Wrap(errors.CodeCatalogInvalid, fmt.Sprintf("catalog file %s", name), err)
			}
		}
	}
	if err := catalog.linkParents(); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (c *Catalog) add(ind Indicator) error {
	if strings.TrimSpace(ind.ID) == "" {
		return fmt.Errorf("indicator with empty id")
	}
	if _, dup := c.indicators[ind.ID]; dup {
		return fmt.Errorf("duplicate indicator %q", ind.ID)
	}
	if ind.AreaID < 1 || ind.AreaID > 6 {
		return fmt.Errorf("indicator %q has invalid governance area %d", ind.ID, ind.AreaID)
	}
	if err := ind.Form.Validate(); err != nil {
		return fmt.Errorf("indicator %q form: %w", ind.ID, err)
	}
	if err := ind.Calculation.Validate(); err != nil {
		return fmt.Errorf("indicator %q calculation: %w", ind.ID, err)
	}
	c.indicators[ind.ID] = ind
	c.byArea[ind.AreaID] = append(c.byArea[ind.AreaID], ind.ID)
	c.ordered = append(c.ordered, ind.ID)
	return nil
}

func (c *Catalog) linkParents() error {
	for id, ind := range c.indicators {
		if ind.ParentID == "" {
			continue
		}
		parent, ok := c.indicators[ind.ParentID]
		if !ok {
			return errors.New(errors.CodeCatalogInvalid, fmt.Sprintf("indicator %q references missing parent %q", id, ind.ParentID))
		}
		if parent.AreaID != ind.AreaID {
			return errors.New(errors.CodeCatalogInvalid, fmt.Sprintf("indicator %q is in area %d but parent %q is in area %d", id, ind.AreaID, ind.ParentID, parent.AreaID))
		}
		c.children[ind.ParentID] = append(c.children[ind.ParentID], id)
	}
	for _, ids := range c.children {
		sort.Strings(ids)
	}
	return nil
}

// Children lists the direct child indicator ids of an indicator.
func (c *Catalog) Children(id string) []string {
	ids := c.children[id]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// IsLeaf reports whether an indicator has no children. Only leaf
// indicators collect responses.
func (c *Catalog) IsLeaf(id string) bool {
	return len(c.children[id]) == 0
}

// Indicator returns one indicator definition by id.
func (c *Catalog) Indicator(id string) (Indicator, bool) {
	ind, ok := c.indicators[id]
	return ind, ok
}

// IndicatorIDs lists all indicator ids in catalog order.
func (c *Catalog) IndicatorIDs() []string {
	out := make([]string, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// AreaIndicatorIDs lists the indicator ids belonging to one governance area.
func (c *Catalog) AreaIndicatorIDs(areaID int) []string {
	ids := c.byArea[areaID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Len returns the number of indicators in the catalog.
func (c *Catalog) Len() int {
	return len(c.ordered)
}
