package operators

import (
	"context"
	"fmt"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/meta"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

var tenantQuotaDefinition = &registry.Definition{
	Kind:        "tenant_quota",
	Description: "Emits the quota of a tenant as one row.",
	Inputs:      registry.None,
	Outputs:     registry.One,
	Params:      []string{"tenant"},
	New:         newTenantQuota,
}

// tenantQuota reads the metadata service in a future, since the read may
// block on storage.
type tenantQuota struct {
	processor.Ports
	reader  registry.MetaReader
	tenant  string
	started bool
	row     *data.Block
}

func newTenantQuota(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	if spec.Env == nil || spec.Env.Meta == nil {
		return nil, spec.Errorf("no metadata service configured")
	}
	tenant, err := spec.String("tenant", spec.Env.Tenant)
	if err != nil {
		return nil, err
	}
	if tenant == "" {
		return nil, spec.Errorf("no tenant given and no default tenant configured")
	}
	return &tenantQuota{
		Ports:  processor.NewPorts(0, 1),
		reader: spec.Env.Meta,
		tenant: tenant,
	}, nil
}

func (q *tenantQuota) PollState() processor.State {
	switch {
	case q.Out[0].IsFinished():
		return processor.Finished
	case !q.started:
		return processor.WaitingAsync
	case q.row == nil:
		return processor.Finished
	case q.Out[0].CanPush():
		return processor.Runnable
	default:
		return processor.HasOutputReady
	}
}

func (q *tenantQuota) Step(context.Context) error {
	if q.Out[0].Push(*q.row) {
		q.row = nil
	}
	return nil
}

func (q *tenantQuota) BeginAsync(context.Context) processor.Future {
	q.started = true
	return func(ctx context.Context) error {
		quota, err := q.reader.GetTenantQuota(ctx, q.tenant)
		if err != nil {
			return fmt.Errorf("reading quota of tenant %s: %w", q.tenant, err)
		}
		b := data.NewBlock(quotaRow(q.tenant, quota))
		q.row = &b
		return nil
	}
}

func quotaRow(tenant string, quota meta.TenantQuota) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"tenant":                  cty.StringVal(tenant),
		"max_databases":           cty.NumberUIntVal(uint64(quota.MaxDatabases)),
		"max_tables_per_database": cty.NumberUIntVal(uint64(quota.MaxTablesPerDatabase)),
		"max_stages":              cty.NumberUIntVal(uint64(quota.MaxStages)),
		"max_files_per_stage":     cty.NumberUIntVal(uint64(quota.MaxFilesPerStage)),
	})
}
