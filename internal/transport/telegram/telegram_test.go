package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"totobot/internal/transport"
	logx "totobot/pkg/logx"
)

func TestClassifyPermanentFailures(t *testing.T) {
	for _, err := range []error{
		tele.ErrBlockedByUser,
		tele.ErrUserIsDeactivated,
		tele.ErrChatNotFound,
		fmt.Errorf("send: %w", tele.ErrKickedFromGroup),
		tele.NewError(403, "Forbidden: bot is not a member of the channel chat"),
	} {
		got := classify(err)
		assert.ErrorIs(t, got, transport.ErrRecipientUnreachable, "%v", err)
		assert.ErrorIs(t, got, err)
	}
}

func TestClassifyTransientFailures(t *testing.T) {
	for _, err := range []error{
		errors.New("dial tcp: connection refused"),
		context.DeadlineExceeded,
		tele.NewError(500, "Internal Server Error"),
	} {
		assert.NotErrorIs(t, classify(err), transport.ErrRecipientUnreachable, "%v", err)
	}
	assert.NoError(t, classify(nil))
}

func TestSplitTextShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitText("hello", 10, ""))
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	s := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitText(s, 12, "")
	require.Len(t, got, 2)
	assert.Equal(t, strings.Repeat("a", 8), got[0])
	assert.Equal(t, strings.Repeat("b", 8), got[1])
}

func TestSplitTextKeepsHTMLTagsWhole(t *testing.T) {
	s := strings.Repeat("x", 9) + "<b>bold</b>"
	got := splitText(s, 11, "HTML")
	require.NotEmpty(t, got)
	assert.Equal(t, strings.Repeat("x", 9), got[0])
	assert.Equal(t, s, strings.Join(got, ""))
	for _, c := range got {
		assert.LessOrEqual(t, len([]rune(c)), 11)
	}
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{}, logx.Nop())
	assert.Error(t, err)
}
