package core

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LanguageSpec is the immutable execution recipe for one language key.
type LanguageSpec struct {
	Key             string `yaml:"key"`
	Label           string `yaml:"label"`
	Image           string `yaml:"image"`
	FileName        string `yaml:"file_name"`
	CommandTemplate string `yaml:"command_template"`
	AceMode         string `yaml:"ace_mode"`
}

type languageDocument struct {
	Languages []LanguageSpec `yaml:"languages"`
}

// PublicLanguage is the projection exposed to clients via GET /languages/.
type PublicLanguage struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	AceMode string `json:"ace_mode"`
}

// LanguageRegistry is process-wide, read-only state built once at startup.
type LanguageRegistry struct {
	byKey map[string]LanguageSpec
	order []string
}

// LoadLanguages parses and validates the YAML document at path, failing fast
// on a missing file, schema violation, duplicate key, or empty required field.
func LoadLanguages(path string) (*LanguageRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("languages config: cannot read %s: %w", path, err)
	}

	var doc languageDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("languages config: invalid yaml in %s: %w", path, err)
	}
	if len(doc.Languages) == 0 {
		return nil, fmt.Errorf("languages config: %s defines no languages", path)
	}

	reg := &LanguageRegistry{byKey: make(map[string]LanguageSpec, len(doc.Languages))}
	for _, spec := range doc.Languages {
		if err := validateLanguageSpec(spec); err != nil {
			return nil, fmt.Errorf("languages config: %w", err)
		}
		key := strings.ToLower(strings.TrimSpace(spec.Key))
		if _, dup := reg.byKey[key]; dup {
			return nil, fmt.Errorf("languages config: duplicate key %q", key)
		}
		reg.byKey[key] = spec
		reg.order = append(reg.order, key)
	}
	return reg, nil
}

func validateLanguageSpec(s LanguageSpec) error {
	fields := map[string]string{
		"key": s.Key, "label": s.Label, "image": s.Image,
		"file_name": s.FileName, "command_template": s.CommandTemplate, "ace_mode": s.AceMode,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("language %q: field %s is required", s.Key, name)
		}
	}
	return nil
}

// Lookup returns the spec for key, or (zero, false) when unknown.
func (r *LanguageRegistry) Lookup(key string) (LanguageSpec, bool) {
	spec, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	return spec, ok
}

// RequiredImages returns the sorted, deduplicated set of sandbox images used
// by any registered language, for startup best-effort pre-pulling.
func (r *LanguageRegistry) RequiredImages() []string {
	set := map[string]struct{}{}
	for _, k := range r.order {
		set[r.byKey[k].Image] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for img := range set {
		out = append(out, img)
	}
	sort.Strings(out)
	return out
}

// PublicList returns the key/label/ace_mode projection consumed by the UI,
// in config-file order.
func (r *LanguageRegistry) PublicList() []PublicLanguage {
	out := make([]PublicLanguage, 0, len(r.order))
	for _, k := range r.order {
		s := r.byKey[k]
		out = append(out, PublicLanguage{Key: s.Key, Label: s.Label, AceMode: s.AceMode})
	}
	return out
}
