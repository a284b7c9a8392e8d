// Package catalogseed embeds the system default type definitions installed
// into an empty catalog at bootstrap.
package catalogseed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type seedFile struct {
	Types []domain.TypeDefinitionRecord `yaml:"types"`
}

// Defaults returns the embedded system type definitions.
func Defaults() ([]domain.TypeDefinitionRecord, error) {
	var file seedFile
	if err := yaml.Unmarshal(defaultsYAML, &file); err != nil {
		return nil, fmt.Errorf("parse embedded catalog defaults: %w", err)
	}
	if len(file.Types) == 0 {
		return nil, fmt.Errorf("embedded catalog defaults are empty")
	}
	return file.Types, nil
}
