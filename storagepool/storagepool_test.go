package storagepool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateExhaustsAndReleaseReplenishes(t *testing.T) {
	p := New(2, func() interface{} { return new(int) })

	h1, err := p.Allocate()
	require.NoError(t, err)
	h2, err := p.Allocate()
	require.NoError(t, err)

	_, err = p.Allocate()
	assert.Error(t, err)

	h1.Release()
	h3, err := p.Allocate()
	require.NoError(t, err)
	assert.NotNil(t, h3.Value())

	h2.Release()
	h3.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	p := New(1, func() interface{} { return new(int) })
	h, err := p.Allocate()
	require.NoError(t, err)

	h.Release()
	h.Release() // must not double-return the slot

	_, err = p.Allocate()
	require.NoError(t, err)
	_, err = p.Allocate()
	assert.Error(t, err)
}
