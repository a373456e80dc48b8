// Package schemareg implements engine.SchemaSource by parsing a single
// schema.fga file once per process and serving the same schema.Model to
// every tenant, the simplest registry a "schema per tenant" model allows.
// A multi-tenant deployment with distinct schemas per tenant would swap
// this for a table-backed registry without engine or Checker needing to
// change, since both only depend on the SchemaSource interface.
package schemareg

import (
	"context"
	"sync"

	"github.com/nexi-lab/nexus-sub005/schema"
	"github.com/nexi-lab/nexus-sub005/schema/parser"
)

// FileRegistry serves one schema.Model, parsed from a single .fga file,
// to every tenant that asks.
type FileRegistry struct {
	mu    sync.RWMutex
	model schema.Model
	path  string
}

// Load parses path and returns a FileRegistry ready to serve it.
func Load(path string) (*FileRegistry, error) {
	m, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(m.Types); err != nil {
		return nil, err
	}
	return &FileRegistry{model: m, path: path}, nil
}

// Model implements engine.SchemaSource. tenant is ignored since all
// tenants share the one loaded schema.
func (r *FileRegistry) Model(ctx context.Context, tenant string) (schema.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.model, nil
}

// Reload re-parses the schema file in place, for a SIGHUP-style refresh
// without restarting the process. Returns the parse or validation error and
// leaves the previous model in place if the file fails to parse or
// validate.
func (r *FileRegistry) Reload() error {
	m, err := parser.ParseFile(r.path)
	if err != nil {
		return err
	}
	if err := schema.Validate(m.Types); err != nil {
		return err
	}

	r.mu.Lock()
	r.model = m
	r.mu.Unlock()
	return nil
}
