package permissions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadCatalogFile reads a YAML catalog declaration and validates it.
// Validation failure here means a deployment defect; callers should treat
// the error as fatal at startup.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}

	return &catalog, nil
}
