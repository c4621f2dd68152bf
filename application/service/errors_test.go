package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageError(t *testing.T) {
	assert.NoError(t, NewStageError(StageReview, nil))

	err := fmt.Errorf("run: %w", NewStageError(StageGeneration, ErrGenerationFailed))
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, "run: generation stage: sql generation failed", err.Error())

	stage, ok := StageOf(err)
	require.True(t, ok)
	assert.Equal(t, StageGeneration, stage)

	_, ok = StageOf(errors.New("plain"))
	assert.False(t, ok)
}
