package id

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsStrictULID(t *testing.T) {
	t.Parallel()

	s := New()
	require.Len(t, s, 26)
	_, err := ulid.ParseStrict(s)
	assert.NoError(t, err)
}

func TestGeneratorSortsByMintOrder(t *testing.T) {
	t.Parallel()

	g := NewGenerator()
	prev := g.New()
	for i := 0; i < 200; i++ {
		next := g.New()
		assert.Greater(t, next, prev)
		prev = next
	}
}
