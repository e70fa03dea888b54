package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vizier-dev/vizier/pkg/models"
)

// ladderFile is the YAML shape of an escalation ladder file:
//
//	tiers:
//	  - name: scout
//	    model: haiku
//	    timeout: 10m
type ladderFile struct {
	Tiers []ladderTier `yaml:"tiers"`
}

type ladderTier struct {
	Name    string `yaml:"name"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// LoadLadder reads an escalation ladder from a YAML file. An empty path
// returns the default ladder.
func LoadLadder(path string) ([]models.Tier, error) {
	if path == "" {
		return models.DefaultLadder(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ladder file: %w", err)
	}

	var file ladderFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse ladder file %s: %w", path, err)
	}
	if len(file.Tiers) == 0 {
		return nil, fmt.Errorf("ladder file %s declares no tiers", path)
	}

	ladder := make([]models.Tier, 0, len(file.Tiers))
	for i, t := range file.Tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("ladder file %s: tier %d has no name", path, i)
		}
		tier := models.Tier{Name: t.Name, Model: t.Model}
		if t.Timeout != "" {
			d, err := time.ParseDuration(t.Timeout)
			if err != nil {
				return nil, fmt.Errorf("ladder file %s: tier %s has invalid timeout: %w", path, t.Name, err)
			}
			tier.Timeout = d
		}
		ladder = append(ladder, tier)
	}
	return ladder, nil
}
