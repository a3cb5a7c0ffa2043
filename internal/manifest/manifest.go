// Package manifest loads job definitions from a YAML file. The manifest
// is the run's input surface: every job an operator wants scanned is
// declared here, and loading rejects the file wholesale on the first
// structural problem rather than registering a partial set.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zeromine/zeromine/internal/contract"
)

// Manifest is the parsed form of a jobs file.
type Manifest struct {
	Jobs []contract.JobSpec `yaml:"jobs"`
}

// Load reads and validates a jobs manifest. Every spec must carry a
// unique ID and a well-formed range; the returned slice preserves file
// order, which becomes dispatch order.
func Load(path string) ([]contract.JobSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(raw)
}

// Parse validates raw manifest bytes. Split from Load for tests and for
// callers that already hold the bytes.
func Parse(raw []byte) ([]contract.JobSpec, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("manifest declares no jobs")
	}

	seen := make(map[string]int, len(m.Jobs))
	for i, spec := range m.Jobs {
		if spec.ID == "" {
			return nil, fmt.Errorf("job %d: missing id", i)
		}
		if prev, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("job %d: id %q already declared by job %d", i, spec.ID, prev)
		}
		seen[spec.ID] = i
		if _, verr := contract.ValidateJob(spec); verr != nil {
			return nil, fmt.Errorf("job %q: %w", spec.ID, verr)
		}
	}
	return m.Jobs, nil
}
