package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "cliquey/pkg/domain"
)

func TestExtractString(t *testing.T) {
	userID := id.NewUserID()
	list := []any{"event", "login_failed", "user_id", userID, "count", 3, "dangling"}

	assert.Equal(t, "login_failed", ExtractString(list, "event"))
	assert.Equal(t, userID.String(), ExtractString(list, "user_id"))
	assert.Empty(t, ExtractString(list, "count"))
	assert.Empty(t, ExtractString(list, "dangling"))
	assert.Empty(t, ExtractString(nil, "event"))
}
