package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	traced := SetTraceID(ctx)
	traceID := GetTraceID(traced)
	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)

	assert.Empty(t, GetTraceID(ctx), "original context is unchanged")
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}

func TestGenerateTraceIDIsUnique(t *testing.T) {
	const iterations = 500
	seen := make(map[string]struct{}, iterations)
	for range iterations {
		seen[generateTraceID()] = struct{}{}
	}
	assert.Len(t, seen, iterations)
}

func TestGenerateFallbackTraceID(t *testing.T) {
	id := generateFallbackTraceID()
	assert.Len(t, id, 32)
	_, err := hex.DecodeString(id)
	assert.NoError(t, err)
}

func TestUserIDFromContext(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name     string
		ctx      context.Context
		expected uuid.UUID
		ok       bool
	}{
		{"present", WithUserID(context.Background(), userID), userID, true},
		{"missing", context.Background(), uuid.Nil, false},
		{"nil uuid", WithUserID(context.Background(), uuid.Nil), uuid.Nil, false},
		{"wrong type", context.WithValue(context.Background(), UserIDContextKey, userID.String()), uuid.Nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := UserIDFromContext(tt.ctx)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
