package validation_test

import (
	"errors"
	"testing"

	"resource-manager/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name        string `json:"name" validate:"required,max=10"`
	Email       string `json:"email" validate:"required,email"`
	Hours       int    `json:"timeEstimateHours" validate:"gt=0"`
	Status      string `json:"status" validate:"omitempty,oneof=active completed"`
	ResourceIDs []int  `json:"resource_ids" validate:"min=1"`
}

func TestValidator_Struct(t *testing.T) {
	v := validation.New()

	t.Run("valid input", func(t *testing.T) {
		err := v.Struct(sample{Name: "Ada", Email: "ada@example.com", Hours: 7, ResourceIDs: []int{1}})
		assert.NoError(t, err)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		err := v.Struct(sample{Email: "nope", Status: "paused"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, validation.ErrInvalid))

		var verr *validation.Error
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "is required", verr.Fields["name"])
		assert.Equal(t, "must be a valid email address", verr.Fields["email"])
		assert.Equal(t, "must be greater than 0", verr.Fields["timeEstimateHours"])
		assert.Equal(t, "must be one of: active completed", verr.Fields["status"])
		assert.Equal(t, "must contain at least 1 item(s)", verr.Fields["resource_ids"])
	})
}

func TestError(t *testing.T) {
	assert.NoError(t, (&validation.Error{}).OrNil())

	err := validation.Field("deadline", "must not be before start date").Add("deadline", "ignored").Add("name", "is required")
	assert.Equal(t, "validation failed: deadline: must not be before start date; name: is required", err.Error())
	assert.ErrorIs(t, err.OrNil(), validation.ErrInvalid)
}
