package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypes(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantType    ErrorType
		wantRetry   bool
		typeChecker func(error) bool
	}{
		{
			name:        "validation error",
			err:         NewValidation("content cannot be empty"),
			wantType:    ErrorTypeValidation,
			wantRetry:   false,
			typeChecker: IsValidation,
		},
		{
			name:        "not found error",
			err:         NewNotFound("branch missing"),
			wantType:    ErrorTypeNotFound,
			wantRetry:   false,
			typeChecker: IsNotFound,
		},
		{
			name:        "configuration error",
			err:         NewConfiguration("weights must sum to 1"),
			wantType:    ErrorTypeConfiguration,
			wantRetry:   false,
			typeChecker: IsConfiguration,
		},
		{
			name:        "provider error is retryable",
			err:         NewProvider("embedding timeout", errors.New("deadline exceeded")),
			wantType:    ErrorTypeProvider,
			wantRetry:   true,
			typeChecker: IsProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var appErr *AppError
			assert.True(t, errors.As(tt.err, &appErr))
			assert.Equal(t, tt.wantType, appErr.Type)
			assert.Equal(t, tt.wantRetry, IsRetryable(tt.err))
			assert.True(t, tt.typeChecker(tt.err))
		})
	}
}

func TestWrapPreservesTypeAndRetryability(t *testing.T) {
	inner := NewProvider("embed call failed", errors.New("connection refused"))
	wrapped := Wrap(inner, "evaluating branch main")

	assert.True(t, IsProvider(wrapped))
	assert.True(t, IsRetryable(wrapped))
	assert.Contains(t, wrapped.Error(), "evaluating branch main")
}

func TestWrapPlainErrorBecomesInternal(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "context")
	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrorTypeInternal, appErr.Type)
	assert.False(t, IsRetryable(wrapped))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
}
