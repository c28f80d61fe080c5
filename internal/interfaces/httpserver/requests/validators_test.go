package requests

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modelPayload struct {
	Model *string `binding:"omitempty,model_id"`
}

func TestModelIDValidator(t *testing.T) {
	require.NoError(t, RegisterValidators())
	require.NoError(t, RegisterValidators())

	valid := "gpt-4"
	invalid := "llama-3"
	assert.NoError(t, binding.Validator.ValidateStruct(modelPayload{Model: &valid}))
	assert.NoError(t, binding.Validator.ValidateStruct(modelPayload{}))
	assert.Error(t, binding.Validator.ValidateStruct(modelPayload{Model: &invalid}))
}
