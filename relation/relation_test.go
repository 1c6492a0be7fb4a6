package relation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullBox(t *testing.T) {
	b := NewNull()
	v, err := b.Get()
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.True(t, b.IsNull())
}

func TestLoadedBox(t *testing.T) {
	b := NewLoaded("x")
	v, err := b.Get()
	require.NoError(t, err)
	assert.Equal(t, "x", v)
	assert.True(t, b.IsLoaded())
}

func TestUnloadedBoxMemoises(t *testing.T) {
	calls := 0
	b := NewUnloaded(func() (any, error) {
		calls++
		return "loaded-value", nil
	})
	assert.Equal(t, Unloaded, b.State())

	v1, err := b.Get()
	require.NoError(t, err)
	assert.Equal(t, "loaded-value", v1)
	assert.Equal(t, 1, calls)
	assert.True(t, b.IsLoaded())

	v2, err := b.Get()
	require.NoError(t, err)
	assert.Equal(t, "loaded-value", v2)
	assert.Equal(t, 1, calls, "second Get must not invoke the loader again")
}

func TestUnloadedBoxPropagatesError(t *testing.T) {
	b := NewUnloaded(func() (any, error) {
		return nil, errors.New("boom")
	})
	_, err := b.Get()
	assert.EqualError(t, err, "boom")
	assert.Equal(t, Unloaded, b.State(), "a failed load leaves the box unloaded for retry")
}
