package leopard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/cache/leopard"
	"github.com/nexi-lab/nexus-sub005/internal/interner"
)

func TestIndex_SeedAndMembers(t *testing.T) {
	idx := leopard.New()
	ctx := context.Background()

	groups := []interner.Sym{1, 2, 3}
	idx.Seed(ctx, "t1", interner.Sym(10), "member", groups)

	got, ok := idx.Members(ctx, "t1", interner.Sym(10), "member")
	require.True(t, ok)
	assert.Equal(t, groups, got)
}

func TestIndex_MembersMissOnUnseeded(t *testing.T) {
	idx := leopard.New()
	_, ok := idx.Members(context.Background(), "t1", interner.Sym(99), "member")
	assert.False(t, ok)
}

func TestIndex_Invalidate_DropsOneSubjectRelation(t *testing.T) {
	idx := leopard.New()
	ctx := context.Background()

	idx.Seed(ctx, "t1", interner.Sym(1), "member", []interner.Sym{5})
	idx.Seed(ctx, "t1", interner.Sym(2), "member", []interner.Sym{6})

	idx.Invalidate(ctx, "t1", interner.Sym(1), "member")

	_, ok := idx.Members(ctx, "t1", interner.Sym(1), "member")
	assert.False(t, ok)
	_, ok = idx.Members(ctx, "t1", interner.Sym(2), "member")
	assert.True(t, ok)
}

func TestIndex_InvalidateTenant_DropsEverythingForTenant(t *testing.T) {
	idx := leopard.New()
	ctx := context.Background()

	idx.Seed(ctx, "t1", interner.Sym(1), "member", []interner.Sym{5})
	idx.Seed(ctx, "t2", interner.Sym(1), "member", []interner.Sym{7})

	idx.InvalidateTenant("t1")

	_, ok := idx.Members(ctx, "t1", interner.Sym(1), "member")
	assert.False(t, ok)
	_, ok = idx.Members(ctx, "t2", interner.Sym(1), "member")
	assert.True(t, ok, "InvalidateTenant must not affect other tenants")
}
