package crosstenant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/cache/crosstenant"
)

// Scenario 5: cross-tenant share. A grant recorded from T2 to T1's alice
// must be visible to T1's alice and to no one else.
func TestIndex_SetAndGrants(t *testing.T) {
	idx := crosstenant.New()
	ctx := context.Background()

	idx.Set(ctx, "T2", "T1", "file:report.pdf", "viewer", []string{"user:alice"})

	subjects, ok := idx.Grants(ctx, "T2", "T1", "file:report.pdf", "viewer")
	require.True(t, ok)
	assert.Equal(t, []string{"user:alice"}, subjects)
}

func TestIndex_GrantsMissForUnrelatedTenantPair(t *testing.T) {
	idx := crosstenant.New()
	ctx := context.Background()

	idx.Set(ctx, "T2", "T1", "file:report.pdf", "viewer", []string{"user:alice"})

	_, ok := idx.Grants(ctx, "T2", "T3", "file:report.pdf", "viewer")
	assert.False(t, ok, "a grant to T1 must not be visible when checking T3")
}

func TestIndex_Invalidate_DropsAcrossReceivingTenants(t *testing.T) {
	idx := crosstenant.New()
	ctx := context.Background()

	idx.Set(ctx, "T2", "T1", "file:report.pdf", "viewer", []string{"user:alice"})
	idx.Set(ctx, "T2", "T3", "file:report.pdf", "viewer", []string{"user:carol"})

	idx.Invalidate(ctx, "T2", "file:report.pdf", "viewer")

	_, ok := idx.Grants(ctx, "T2", "T1", "file:report.pdf", "viewer")
	assert.False(t, ok)
	_, ok = idx.Grants(ctx, "T2", "T3", "file:report.pdf", "viewer")
	assert.False(t, ok)
}
