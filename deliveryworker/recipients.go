package deliveryworker

import (
	"context"
	"net/mail"

	"github.com/briefloop/researchcore/errs"
)

// DirectRecipients treats the project's userId as the send-to address
// directly. With user-profile storage out of scope, this is the minimal
// resolution available: it assumes the upstream identity system's userId
// already is the account's email, which callers can swap for an
// HTTP-backed Recipients against a real user service without touching the
// Worker.
type DirectRecipients struct{}

func (DirectRecipients) EmailFor(ctx context.Context, userID string) (string, error) {
	if _, err := mail.ParseAddress(userID); err != nil {
		return "", errs.Wrap(errs.Validation, err, "deliveryworker: userId is not a usable email address")
	}
	return userID, nil
}

var _ Recipients = DirectRecipients{}
