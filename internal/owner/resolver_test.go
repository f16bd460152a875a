package owner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-insights-go/internal/logger"
)

type failingDirectory struct{}

func (failingDirectory) FindByDisplayName(context.Context, string) (Identity, bool, error) {
	return Identity{}, false, errors.New("directory down")
}

func newTestResolver(dir Directory) *Resolver {
	return NewResolver(dir, logger.Discard().Entry)
}

func TestResolve_Unassigned(t *testing.T) {
	r := newTestResolver(NewMemoryDirectory(Identity{Ref: "u-1", DisplayName: "Unassigned"}))
	for _, name := range []string{"", "   ", "unassigned", "UNASSIGNED", " Unassigned "} {
		res := r.Resolve(context.Background(), name)
		assert.Nil(t, res.IdentityRef, name)
		assert.True(t, res.IsUnassigned, name)
	}
}

func TestResolve_ExactMatch(t *testing.T) {
	dir := NewMemoryDirectory(
		Identity{Ref: "jane-ref", DisplayName: "Jane Doe"},
		Identity{Ref: "bob-ref", DisplayName: "Bob Stone"},
	)
	r := newTestResolver(dir)

	res := r.Resolve(context.Background(), "Jane Doe")
	require.NotNil(t, res.IdentityRef)
	assert.Equal(t, "jane-ref", *res.IdentityRef)
	assert.False(t, res.IsUnassigned)

	res = r.Resolve(context.Background(), "  jane DOE ")
	require.NotNil(t, res.IdentityRef)
	assert.Equal(t, "jane-ref", *res.IdentityRef)
}

func TestResolve_NoSubstringMatch(t *testing.T) {
	r := newTestResolver(NewMemoryDirectory(Identity{Ref: "jane-ref", DisplayName: "Jane Doe"}))
	for _, name := range []string{"Jane", "Doe", "Jane Doe Jr", "Nobody Here"} {
		res := r.Resolve(context.Background(), name)
		assert.Nil(t, res.IdentityRef, name)
		assert.True(t, res.IsUnassigned, name)
	}
}

func TestResolve_AmbiguousIsUnassigned(t *testing.T) {
	r := newTestResolver(NewMemoryDirectory(
		Identity{Ref: "a", DisplayName: "Alex Kim"},
		Identity{Ref: "b", DisplayName: "alex kim"},
	))
	res := r.Resolve(context.Background(), "Alex Kim")
	assert.True(t, res.IsUnassigned)
}

func TestResolve_DirectoryFailureDegrades(t *testing.T) {
	res := newTestResolver(failingDirectory{}).Resolve(context.Background(), "Jane Doe")
	assert.Nil(t, res.IdentityRef)
	assert.True(t, res.IsUnassigned)
}

func TestResolve_NilDirectory(t *testing.T) {
	res := newTestResolver(nil).Resolve(context.Background(), "Jane Doe")
	assert.True(t, res.IsUnassigned)
}

func TestResolve_RefsAreNotShared(t *testing.T) {
	r := newTestResolver(NewMemoryDirectory(Identity{Ref: "jane-ref", DisplayName: "Jane Doe"}))
	a := r.Resolve(context.Background(), "Jane Doe")
	b := r.Resolve(context.Background(), "Jane Doe")
	require.NotNil(t, a.IdentityRef)
	require.NotNil(t, b.IdentityRef)
	assert.NotSame(t, a.IdentityRef, b.IdentityRef)
}

func TestMemoryDirectory_ConcurrentAccess(t *testing.T) {
	dir := NewMemoryDirectory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			dir.Add(Identity{Ref: "r", DisplayName: "Someone"})
		}()
		go func() {
			defer wg.Done()
			_, _, _ = dir.FindByDisplayName(context.Background(), "someone")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, dir.Len())
}

func TestMemoryDirectory_IgnoresBlankNames(t *testing.T) {
	dir := NewMemoryDirectory(Identity{Ref: "x", DisplayName: "  "})
	assert.Zero(t, dir.Len())
}
