package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	FirstName string `json:"firstName" validate:"required"`
	Email     string `json:"email"     validate:"required,email"`
}

func TestStruct(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, v.Struct(signup{FirstName: "Ada", Email: "ada@example.com"}))
	})

	t.Run("reports fields by json name", func(t *testing.T) {
		err := v.Struct(signup{Email: "not-an-email"})
		require.Error(t, err)

		var verr *Error
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Fields, "firstName")
		assert.Contains(t, verr.Fields, "email")
		assert.Contains(t, verr.Fields["firstName"], "required")
	})
}
