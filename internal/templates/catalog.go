// Package templates provides the read-only catalog of named certificate
// layouts. Built-in templates are embedded YAML; a user directory can add
// or override entries.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/sendora/sendora/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// Catalog holds certificate templates keyed by id.
type Catalog struct {
	templates map[string]*models.CertificateTemplate
}

// Load builds the catalog from the embedded defaults plus an optional user
// directory of .yaml files. User entries with an id already present
// override the built-in one.
func Load(userDir string) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]*models.CertificateTemplate)}

	if err := c.loadFS(defaultsFS, "defaults"); err != nil {
		return nil, fmt.Errorf("load embedded templates: %w", err)
	}

	if userDir != "" {
		if err := c.loadFS(os.DirFS(userDir), "."); err != nil {
			return nil, fmt.Errorf("load templates from %s: %w", userDir, err)
		}
	}

	return c, nil
}

func (c *Catalog) loadFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(root, e.Name()))
		if err != nil {
			return err
		}

		var tmpl models.CertificateTemplate
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return fmt.Errorf("parse %s: %w", e.Name(), err)
		}

		if err := validate(&tmpl); err != nil {
			return fmt.Errorf("invalid template %s: %w", e.Name(), err)
		}

		c.templates[tmpl.ID] = &tmpl
	}

	return nil
}

// Get returns the template with the given id.
func (c *Catalog) Get(id string) (*models.CertificateTemplate, error) {
	tmpl, ok := c.templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown template id: %s", id)
	}
	return tmpl, nil
}

// List returns all templates sorted by id.
func (c *Catalog) List() []*models.CertificateTemplate {
	out := make([]*models.CertificateTemplate, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validate(t *models.CertificateTemplate) error {
	if t.ID == "" {
		return fmt.Errorf("missing id")
	}
	if t.Page.Width <= 0 || t.Page.Height <= 0 {
		return fmt.Errorf("page size must be positive, got %.1fx%.1f", t.Page.Width, t.Page.Height)
	}
	switch t.Orientation {
	case models.OrientationPortrait, models.OrientationLandscape:
	default:
		return fmt.Errorf("unknown orientation: %s", t.Orientation)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("template has no fields")
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name: %s", f.Name)
		}
		seen[f.Name] = true
		if f.X < 0 || f.Y < 0 || f.X > t.Page.Width || f.Y > t.Page.Height {
			return fmt.Errorf("field %s is placed off the page", f.Name)
		}
		switch f.Align {
		case "", models.AlignLeft, models.AlignCenter, models.AlignRight:
		default:
			return fmt.Errorf("field %s has unknown alignment: %s", f.Name, f.Align)
		}
	}
	return nil
}
