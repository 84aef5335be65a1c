package mockservice

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// fixtureFile is the on-disk shape: a fixtures map keyed by operation.
type fixtureFile struct {
	Fixtures map[string][]Stub `yaml:"fixtures"`
}

// LoadFixtures reads a YAML fixtures file.
func LoadFixtures(fs afero.Fs, path string) (map[string][]Stub, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures %s: %w", path, err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes fixture YAML.
func ParseFixtures(data []byte) (map[string][]Stub, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if len(f.Fixtures) == 0 {
		return nil, fmt.Errorf("fixtures file declares no fixtures")
	}
	return f.Fixtures, nil
}
