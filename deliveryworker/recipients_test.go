package deliveryworker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectRecipientsAcceptsValidEmail(t *testing.T) {
	to, err := DirectRecipients{}.EmailFor(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", to)
}

func TestDirectRecipientsRejectsNonEmailUserID(t *testing.T) {
	_, err := DirectRecipients{}.EmailFor(context.Background(), "user-123")
	require.Error(t, err)
}
