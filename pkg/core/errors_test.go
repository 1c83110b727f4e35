package core_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/mnemos-go/pkg/core"
)

func TestEngineErrorFormat(t *testing.T) {
	err := core.NewEngineError("Retrieve", core.ErrNoEmbedder)
	require.Error(t, err)
	assert.Equal(t, "mnemos: Retrieve: no embedder configured", err.Error())
}

func TestEngineErrorUnwrap(t *testing.T) {
	err := core.NewEngineError("Validate", core.ErrInvalidConfig)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))

	var engineErr *core.EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, "Validate", engineErr.Op)
}

func TestNewEngineErrorNilPropagation(t *testing.T) {
	assert.NoError(t, core.NewEngineError("Anything", nil))
}
