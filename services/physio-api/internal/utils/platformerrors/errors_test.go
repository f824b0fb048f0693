package platformerrors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsErrorKeepsPlatformType(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	inner := NewError(ctx, LayerDomain, ErrorTypeForbidden, "You can only delete your own messages", nil, "")

	wrapped := AsError(ctx, LayerRepository, inner, "delete message")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeForbidden, wrapped.Type)
	assert.Equal(t, inner.UUID, wrapped.UUID)
	assert.Equal(t, "req-1", wrapped.RequestID)
	assert.True(t, IsErrorType(wrapped, ErrorTypeForbidden))
	assert.Equal(t, "delete message: You can only delete your own messages", wrapped.Message)
}

func TestAsErrorClassifiesPlainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{name: "plain", err: errors.New("boom"), want: ErrorTypeInternal},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrorTypeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AsError(context.Background(), LayerRepository, tt.err, "op")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Type)
			assert.NotEmpty(t, got.UUID)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, AsError(context.Background(), LayerDomain, nil, "noop"))
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := map[ErrorType]int{
		ErrorTypeNotFound:     http.StatusNotFound,
		ErrorTypeValidation:   http.StatusBadRequest,
		ErrorTypeConflict:     http.StatusConflict,
		ErrorTypeUnauthorized: http.StatusUnauthorized,
		ErrorTypeForbidden:    http.StatusForbidden,
		ErrorTypeUnavailable:  http.StatusServiceUnavailable,
		ErrorTypeExternal:     http.StatusBadGateway,
		ErrorTypeInternal:     http.StatusInternalServerError,
	}
	for errorType, status := range tests {
		assert.Equal(t, status, ErrorTypeToHTTPStatus(errorType), string(errorType))
	}
}
