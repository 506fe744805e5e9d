package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GrantSpec is one entry of the permission-config document's default_grants
// list (spec.md §6).
type GrantSpec struct {
	Target string `yaml:"target" json:"target"`
	Level  string `yaml:"level" json:"level"`
}

// PermissionConfig is the permission-config document consumed by the
// Authority component at startup.
type PermissionConfig struct {
	DefaultGrants        []GrantSpec `yaml:"default_grants" json:"default_grants"`
	RequiresConfirmation []string    `yaml:"requires_confirmation" json:"requires_confirmation"`
	AlwaysBlocked        []string    `yaml:"always_blocked" json:"always_blocked"`
}

// DefaultPermissionConfig matches the original JARVIS security posture:
// READ is always granted by default, destructive levels need confirmation,
// ADMIN is never auto-granted.
func DefaultPermissionConfig() *PermissionConfig {
	return &PermissionConfig{
		DefaultGrants: []GrantSpec{
			{Target: "*", Level: "READ"},
		},
		RequiresConfirmation: []string{"WRITE", "EXECUTE", "ADMIN"},
		AlwaysBlocked:        []string{},
	}
}

// LoadPermissionConfig reads the permission-config YAML document at path. A
// missing file yields DefaultPermissionConfig rather than an error, so a
// fresh install still has a sane (conservative) policy.
func LoadPermissionConfig(path string) (*PermissionConfig, error) {
	cfg := DefaultPermissionConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read permissions %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse permissions %s: %w", path, err)
	}
	return cfg, nil
}
