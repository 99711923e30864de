package broadcast

import (
	"strings"

	"totobot/internal/draw"
	"totobot/pkg/tgui"
)

const notAvailable = "(not available)"

// FormatUpdate renders the notification body in Telegram HTML.
// A missing or half-populated state renders both values as placeholders.
func FormatUpdate(st *draw.State) tgui.H {
	jackpot, drawAt := notAvailable, notAvailable
	// A half-populated state is no state.
	if st != nil && st.Valid() {
		jackpot = strings.TrimSpace(st.Jackpot)
		drawAt = strings.TrimSpace(st.DrawAt)
	}
	return tgui.Lines(
		tgui.Cat(tgui.Raw("🏆 "), tgui.B("TOTO Update")),
		tgui.Cat(tgui.Raw("💰 Prize: "), tgui.Esc(jackpot)),
		tgui.Cat(tgui.Raw("📅 Next Draw: "), tgui.Esc(drawAt)),
	)
}
