// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderEndpoint describes one upstream geocoding deployment.
type ProviderEndpoint struct {
	BaseURL     string `yaml:"baseUrl"`
	CountryCode string `yaml:"countryCode"`
}

// ProviderProfile holds the upstream endpoints for both location-field
// variants. Deployments ship a YAML profile; anything not set falls back to
// PROVIDER_BASE_URL / PROVIDER_COUNTRY_CODE environment variables.
type ProviderProfile struct {
	Domestic      ProviderEndpoint `yaml:"domestic"`
	International ProviderEndpoint `yaml:"international"`
}

// LoadProviderProfile reads the provider profile YAML from path.
// An empty path yields a profile built from environment variables only.
func LoadProviderProfile(path string) (*ProviderProfile, error) {
	profile := &ProviderProfile{}

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read provider profile: %w", err)
		}
		if err := yaml.Unmarshal(data, profile); err != nil {
			return nil, fmt.Errorf("parse provider profile: %w", err)
		}
	}

	fallbackURL := getEnv("PROVIDER_BASE_URL", "")
	fallbackCountry := getEnv("PROVIDER_COUNTRY_CODE", "ID")

	if profile.Domestic.BaseURL == "" {
		profile.Domestic.BaseURL = fallbackURL
	}
	if profile.Domestic.CountryCode == "" {
		profile.Domestic.CountryCode = fallbackCountry
	}
	if profile.International.BaseURL == "" {
		profile.International.BaseURL = fallbackURL
	}
	if profile.International.CountryCode == "" {
		profile.International.CountryCode = fallbackCountry
	}

	if profile.Domestic.BaseURL == "" {
		return nil, fmt.Errorf("provider profile: domestic baseUrl is required (set PROVIDER_BASE_URL or provide a profile)")
	}
	if profile.International.BaseURL == "" {
		return nil, fmt.Errorf("provider profile: international baseUrl is required")
	}

	return profile, nil
}
