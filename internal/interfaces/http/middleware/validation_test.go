package middleware

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationDetails(t *testing.T) {
	SetupValidator()

	err := binding.Validator.ValidateStruct(&dto.WriteRequest{})
	require.Error(t, err)

	details := ValidationDetails(err)
	assert.ElementsMatch(t, []dto.ValidationDetail{
		{Field: "userEmail", Message: "This field is required"},
		{Field: "data", Message: "This field is required"},
	}, details)

	assert.NoError(t, binding.Validator.ValidateStruct(&dto.OwnerRequest{UserEmail: "u1"}))
	assert.Nil(t, ValidationDetails(assert.AnError))
}
