package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequestIDFormat(t *testing.T) {
	id := GenerateRequestID()
	assert.Regexp(t, RequestIDPattern, id)

	parts := strings.Split(id, "-")
	require.Len(t, parts, 3)
	_, err := time.Parse("20060102", parts[0])
	assert.NoError(t, err)
	_, err = time.Parse("150405", parts[1])
	assert.NoError(t, err)
}

func TestGenerateRequestIDUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := GenerateRequestID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestRequestIDPatternRejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"20260829-143000",
		"20260829-143000-abc123",
		"2026829-143000-A1B2C3",
		"20260829-143000-A1B2C3X",
		"20260829_143000_A1B2C3",
	} {
		assert.False(t, RequestIDPattern.MatchString(bad), bad)
	}
}
