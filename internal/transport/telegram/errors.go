package telegram

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"totobot/internal/transport"
)

// unreachable are Bot API errors that will not clear up on retry.
var unreachable = []error{
	tele.ErrBlockedByUser,
	tele.ErrUserIsDeactivated,
	tele.ErrChatNotFound,
	tele.ErrKickedFromGroup,
	tele.ErrKickedFromSuperGroup,
	tele.ErrNotStartedByUser,
}

// classify wraps permanent per-chat failures with transport.ErrRecipientUnreachable.
// Everything else (network, flood control, 5xx) is returned as is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, e := range unreachable {
		if errors.Is(err, e) {
			return fmt.Errorf("%w: %w", transport.ErrRecipientUnreachable, err)
		}
	}
	var te *tele.Error
	if errors.As(err, &te) {
		desc := strings.ToLower(te.Description)
		if te.Code == 403 || strings.Contains(desc, "chat not found") || strings.Contains(desc, "user is deactivated") {
			return fmt.Errorf("%w: %w", transport.ErrRecipientUnreachable, err)
		}
	}
	return err
}
