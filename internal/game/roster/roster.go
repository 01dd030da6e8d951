// Package roster loads persistent character records from YAML files, one
// record per file. It backs the in-memory character resolver when no
// database is configured.
package roster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridforge/skirmish/internal/game/character"
)

// LoadDirectory reads every .yaml/.yml file in dir and parses each as a
// character record.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed records (may be empty) or a non-nil
// error naming the offending file.
func LoadDirectory(dir string) ([]*character.Record, error) {
	files, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	records := make([]*character.Record, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var rec character.Record
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parsing character file %s: %w", path, err)
		}
		if err := validate(&rec); err != nil {
			return nil, fmt.Errorf("character file %s: %w", path, err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// NewResolver loads dir and wraps the records in a static resolver.
func NewResolver(dir string) (*character.StaticResolver, error) {
	records, err := LoadDirectory(dir)
	if err != nil {
		return nil, err
	}
	return character.NewStaticResolver(records...), nil
}

func validate(rec *character.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("missing id")
	}
	if rec.MaxHP < 1 {
		return fmt.Errorf("character %q: max_hp must be positive", rec.ID)
	}
	return nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths, nil
}
