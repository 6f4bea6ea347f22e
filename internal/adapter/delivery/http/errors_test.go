package http

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestFieldErrors(t *testing.T) {
	validate := validator.New()

	t.Run("not a validation error", func(t *testing.T) {
		assert.Nil(t, fieldErrors(errors.New("boom")))
	})

	t.Run("wrapped validation error", func(t *testing.T) {
		err := validate.Struct(urlRequest{OriginalURL: "not a url"})

		fields := fieldErrors(fmt.Errorf("decode: %w", err))

		assert.Equal(t, []fieldError{{Field: "OriginalURL", Message: "invalid url"}}, fields)
	})

	t.Run("unknown tag", func(t *testing.T) {
		err := validate.Var("ab", "min=3")

		fields := fieldErrors(err)

		assert.Len(t, fields, 1)
		assert.Equal(t, "invalid value", fields[0].Message)
	})
}
