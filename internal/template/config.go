package template

import "regexp"

// placeholder matches a `{{name}}` template variable reference.
var placeholder = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Config is the typed view of a NodeRecord's config map for a Template node.
type Config struct {
	Template string
}

// FromMap builds a Config from a NodeRecord.Config map.
func FromMap(m map[string]any) Config {
	cfg := Config{}
	if v, ok := m["template"].(string); ok {
		cfg.Template = v
	}
	return cfg
}

// variableNames returns the distinct `{{name}}` references in tmpl, in
// first-occurrence order.
func variableNames(tmpl string) []string {
	matches := placeholder.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
