package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "cliquey/pkg/domain"
	dErrors "cliquey/pkg/domain-errors"
)

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		login   string
		wantErr bool
	}{
		{"alice@example.com", false},
		{"alice", false},
		{"a.b-c_d", false},
		{"ab", true},
		{strings.Repeat("a", 65), true},
		{"not an email@", true},
		{"bad@", true},
		{"spaces here", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.login, func(t *testing.T) {
			err := ValidateLogin(tt.login)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.NoError(t, ValidatePassword("longenough"))
	assert.NoError(t, ValidatePassword(strings.Repeat("x", 72)))
	assert.Error(t, ValidatePassword(strings.Repeat("x", 73)))
}

func TestNormalizeLogin(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeLogin("  Alice@Example.COM "))
}

func TestNewUser(t *testing.T) {
	now := time.Now()

	u, err := NewUser(id.NewUserID(), "alice", "$2a$hash", RoleUser, "ABC123", now)
	require.NoError(t, err)
	assert.False(t, u.PublicID.IsNil())
	assert.NotEqual(t, u.ID.String(), u.PublicID.String())
	assert.False(t, u.IsAdmin())
	assert.Equal(t, "ABC123", u.InvitationCode)

	_, err = NewUser(id.NewUserID(), "alice", "", RoleUser, "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewUser(id.NewUserID(), "alice", "$2a$hash", Role("root"), "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
