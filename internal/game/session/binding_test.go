package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridlock/internal/game/engine"
)

func TestBindLookup(t *testing.T) {
	m := NewManager()
	m.Bind(1, "QX7K", engine.X, "token-1")

	b, ok := m.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, HandleID(1), b.Conn)
	assert.Equal(t, "QX7K", b.Code)
	assert.Equal(t, engine.X, b.Symbol)
	assert.Equal(t, "token-1", b.PlayerToken)
	assert.Equal(t, 1, m.Count())
}

func TestLookupUnbound(t *testing.T) {
	m := NewManager()
	_, ok := m.Lookup(42)
	assert.False(t, ok)
}

func TestBindReplaces(t *testing.T) {
	m := NewManager()
	m.Bind(1, "AAAA", engine.X, "t1")
	m.Bind(1, "BBBB", engine.O, "t2")

	b, ok := m.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "BBBB", b.Code)
	assert.Equal(t, engine.O, b.Symbol)
	assert.Equal(t, 1, m.Count())
}

func TestUnbind(t *testing.T) {
	m := NewManager()
	m.Bind(1, "QX7K", engine.O, "t1")

	b, ok := m.Unbind(1)
	require.True(t, ok)
	assert.Equal(t, "QX7K", b.Code)
	assert.Equal(t, 0, m.Count())

	_, ok = m.Unbind(1)
	assert.False(t, ok)
	_, ok = m.Lookup(1)
	assert.False(t, ok)
}
