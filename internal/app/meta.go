package app

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PrintYAML writes a metadata reply to the output as a YAML document.
func (a *App) PrintYAML(v any) error {
	enc := yaml.NewEncoder(a.outW)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}
	return enc.Close()
}

// Tenant is the tenant metadata commands act on.
func (a *App) Tenant() string {
	return a.config.Tenant
}
