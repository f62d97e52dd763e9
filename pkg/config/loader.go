package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

// LoadTaxonomy reads and validates a taxonomy YAML file.
func LoadTaxonomy(filePath string) (*Taxonomy, error) {
	log.Printf("Loading taxonomy from %s...", filePath)

	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file '%s': %w", filePath, err)
	}

	var t Taxonomy
	if err := yaml.Unmarshal(yamlFile, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML from '%s': %w", filePath, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("taxonomy validation failed: %w", err)
	}

	log.Printf("Taxonomy '%s' loaded: %d options.", t.Kind, len(t.Options))
	return &t, nil
}

// ResolveTaxonomy accepts either a builtin kind ("comedor") or a path to a
// YAML file.
func ResolveTaxonomy(ref string) (*Taxonomy, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("no taxonomy configured (builtins: %s)", strings.Join(BuiltinKinds(), ", "))
	}
	if t := Builtin(ref); t != nil {
		return t, nil
	}
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") || strings.ContainsRune(ref, os.PathSeparator) {
		return LoadTaxonomy(ref)
	}
	return nil, fmt.Errorf("unknown taxonomy %q (builtins: %s)", ref, strings.Join(BuiltinKinds(), ", "))
}
