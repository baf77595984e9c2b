package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RegionPolicy is an operator-defined compliance overlay on top of a
// client's own wire.Constraints.Regions (spec §4.5 scheduling
// constraints): DeniedRegions is enforced unconditionally, never
// overridable by a client request; AllowedRegions fills in a client
// request that left Regions empty. Grounded on the teacher's
// core/pkg/config/profile_loader.go RegionalProfile/NetworkingConfig
// shape, trimmed to the one concern this router needs.
type RegionPolicy struct {
	AllowedRegions []string `yaml:"allowed_regions"`
	DeniedRegions  []string `yaml:"denied_regions"`
}

// LoadRegionPolicy reads a YAML region policy file. A missing path is not
// an error — region policy is optional (spec §6: routers may run without
// one).
func LoadRegionPolicy(path string) (*RegionPolicy, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read region policy %s: %w", path, err)
	}
	var p RegionPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse region policy %s: %w", path, err)
	}
	return &p, nil
}

// Denied reports whether region is on the deny list.
func (p *RegionPolicy) Denied(region string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.DeniedRegions {
		if r == region {
			return true
		}
	}
	return false
}
