package alias

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Overrides holds operator-supplied alias spellings keyed by canonical field.
// Applied spellings are searched before the built-in list, so an override can
// both add new keys and re-prioritize existing ones.
type Overrides struct {
	Fields map[Field][]string `yaml:"fields"`
}

// LoadOverrides reads alias overrides from a YAML file.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "alias: read overrides %s", path)
	}

	// The YAML has a top-level "aliases" key
	var wrapper struct {
		Aliases Overrides `yaml:"aliases"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "alias: parse overrides")
	}
	return &wrapper.Aliases, nil
}

// Apply prepends the override spellings to the built-in alias lists. Unknown
// field names are rejected so a typo in the file fails loudly instead of
// silently resolving nothing.
func (o *Overrides) Apply() error {
	for field, keys := range o.Fields {
		builtin, known := aliases[field]
		if !known {
			return eris.Errorf("alias: unknown field %q (valid: %s)", field, validFields())
		}
		merged := make([]string, 0, len(keys)+len(builtin))
		seen := make(map[string]bool, len(keys))
		for _, k := range keys {
			k = strings.TrimSpace(k)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, k)
		}
		for _, k := range builtin {
			if !seen[k] {
				merged = append(merged, k)
			}
		}
		aliases[field] = merged
	}
	return nil
}

func validFields() string {
	names := make([]string, 0, len(aliases))
	for f := range aliases {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
