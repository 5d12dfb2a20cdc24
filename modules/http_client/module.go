// Package http_client provides the `http` source, which fetches a URL once
// and emits the response as rows.
//
// A JSON array body becomes one row per element and any other JSON body
// becomes a single row. With format = "raw" the source emits one row of
// {status_code, body} instead.
package http_client

import (
	"github.com/specialistvlad/burstflow/internal/registry"
)

// Kind is the operator kind registered by this module.
const Kind = "http"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the http kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Fetches a URL and emits the response body as rows.",
		Inputs:      registry.None,
		Outputs:     registry.One,
		Params:      []string{"url", "method", "headers", "body", "format", "timeout"},
		Required:    []string{"url"},
		New:         newFetch,
	})
}
