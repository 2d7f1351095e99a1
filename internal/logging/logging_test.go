package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	l, err := New("DEBUG")
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(-1))

	_, err = New("loud")
	require.Error(t, err)
}

func TestNamedNil(t *testing.T) {
	l := Named(nil, "x")
	require.NotNil(t, l)
	l.Infow("discarded", "k", "v")
}
