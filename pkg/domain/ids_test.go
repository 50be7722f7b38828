package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "cliquey/pkg/domain-errors"
)

// TestParseUUID_Invariants covers the trust-boundary rule that IDs are valid,
// non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseProfileID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParsePublicID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE users;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfileID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestProfileAndPublicIDsAreDistinct documents that a profile's public identifier
// is a separate value from its primary key.
func TestProfileAndPublicIDsAreDistinct(t *testing.T) {
	profileID := NewProfileID()
	publicID := NewPublicID()

	assert.NotEqual(t, uuid.UUID(profileID), uuid.UUID(publicID))
	assert.False(t, profileID.IsNil())
	assert.False(t, publicID.IsNil())
}

func TestIDsEncodeAsUUIDStrings(t *testing.T) {
	userID := NewUserID()
	publicID := NewPublicID()
	out, err := json.Marshal(struct {
		UserID   UserID   `json:"user_id"`
		PublicID PublicID `json:"public_id"`
	}{userID, publicID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"`+userID.String()+`","public_id":"`+publicID.String()+`"}`, string(out))

	var decoded struct {
		UserID UserID `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, userID, decoded.UserID)
}
