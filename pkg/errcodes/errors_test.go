package errcodes

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIs_ComparesCodeAndMessage(t *testing.T) {
	t.Parallel()

	err := errors.WithStack(NotFound("Book"))

	assert.ErrorIs(t, err, NotFound("Book"))
	assert.NotErrorIs(t, err, NotFound("Loan"))
	assert.NotErrorIs(t, err, ValidationError("Book not found."))
}

func TestHasCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		code     string
		expected bool
	}{
		{"nil error", nil, CodeNotFound, false},
		{"plain error", errors.New("boom"), CodeStorage, false},
		{"direct match", DuplicateKey("book", "ISBN", "111"), CodeDuplicateKey, true},
		{"wrapped match", errors.Wrap(AlreadyOnLoan(), "open loan"), CodeAlreadyOnLoan, true},
		{"different code", AlreadyReturned(), CodeNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasCode(tt.err, tt.code))
		})
	}
}

func TestStorage(t *testing.T) {
	t.Parallel()

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Storage(nil))
	})

	t.Run("wraps plain errors and keeps the cause", func(t *testing.T) {
		cause := errors.New("disk I/O error")
		err := Storage(errors.WithStack(cause))
		require.Error(t, err)
		assert.True(t, HasCode(err, CodeStorage))
		assert.Equal(t, cause, errors.Cause(err))
		assert.Contains(t, err.Error(), "disk I/O error")
	})

	t.Run("passes coded errors through", func(t *testing.T) {
		err := Storage(ValidationError(`"title" is required`))
		assert.True(t, HasCode(err, CodeValidation))
		assert.False(t, HasCode(err, CodeStorage))
	})
}
