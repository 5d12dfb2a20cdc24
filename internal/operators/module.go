package operators

import "github.com/specialistvlad/burstflow/internal/registry"

// DefaultBatchSize is the number of rows sources put in one block.
const DefaultBatchSize = 64

// Module registers the builtin operator kinds.
type Module struct{}

// Register implements registry.Module.
func (Module) Register(r *registry.Registry) {
	for _, def := range []*registry.Definition{
		valuesDefinition,
		rangeDefinition,
		filterDefinition,
		projectDefinition,
		limitDefinition,
		failAfterDefinition,
		mergeDefinition,
		broadcastDefinition,
		aggregateDefinition,
		sortDefinition,
		delayDefinition,
		tenantQuotaDefinition,
		sinkDefinition,
	} {
		r.Register(def)
	}
}
