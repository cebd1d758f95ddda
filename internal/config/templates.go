package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TestTemplateName is the fixed diagnostic template used by the
// end-to-end test send. It takes a single destination parameter.
const TestTemplateName = "nibog_test_ping"

// TemplateSpec declares a gateway-approved message template: its name,
// language code, and the number of positional placeholders ({{1}}..{{N}})
// its body expects. The parameter list built for a send must match
// ParamCount exactly or the gateway rejects the message (error #132000).
type TemplateSpec struct {
	Name       string `yaml:"name"`
	Language   string `yaml:"language"`
	ParamCount int    `yaml:"param_count"`
}

// TemplateCatalog is the set of templates this service knows how to fill.
type TemplateCatalog struct {
	Templates []TemplateSpec `yaml:"templates"`
}

// defaultCatalog matches the templates approved in the Zaptra dashboard.
var defaultCatalog = TemplateCatalog{
	Templates: []TemplateSpec{
		{Name: DefaultTemplateName, Language: DefaultTemplateLanguage, ParamCount: 8},
		{Name: TestTemplateName, Language: DefaultTemplateLanguage, ParamCount: 1},
	},
}

// LoadTemplateCatalog reads the template catalog from a YAML file. An empty
// path returns the built-in catalog.
func LoadTemplateCatalog(path string) (*TemplateCatalog, error) {
	if path == "" {
		c := defaultCatalog
		return &c, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from admin-configured env var
	if err != nil {
		return nil, fmt.Errorf("reading template catalog %q: %w", path, err)
	}

	var c TemplateCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing template catalog %q: %w", path, err)
	}

	for i, t := range c.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template catalog %q: entry %d has no name", path, i)
		}
		if t.ParamCount < 0 {
			return nil, fmt.Errorf("template catalog %q: template %q has negative param_count", path, t.Name)
		}
	}
	return &c, nil
}

// Lookup returns the spec for the named template.
func (c *TemplateCatalog) Lookup(name string) (TemplateSpec, bool) {
	for _, t := range c.Templates {
		if t.Name == name {
			return t, true
		}
	}
	return TemplateSpec{}, false
}
