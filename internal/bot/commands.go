package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"totobot/internal/broadcast"
	"totobot/internal/draw"
	"totobot/internal/drawcache"
	"totobot/internal/transport"
	logx "totobot/pkg/logx"
	"totobot/pkg/tgui"
)

// listLimit caps the ids printed by /listsubs.
const listLimit = 200

type Subscriptions interface {
	AddRecipient(ctx context.Context, chatID int64) error
	RemoveRecipient(ctx context.Context, chatID int64) error
	ListRecipients(ctx context.Context) ([]int64, error)
}

type StatusSource interface {
	Current(ctx context.Context) (drawcache.Lookup, error)
}

// NotifyFunc runs one broadcast of the current state.
type NotifyFunc func(ctx context.Context) (broadcast.Report, error)

type Deps struct {
	Subscriptions Subscriptions
	Status        StatusSource
	Notify        NotifyFunc
	Clock         clockwork.Clock
	// Location returns the zone draw times are published in; nil means draw.DefaultLocation.
	Location func() *time.Location
}

// RegisterDefaults installs the subscriber and admin commands.
func RegisterDefaults(r *Router, d Deps) {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Location == nil {
		d.Location = draw.DefaultLocation
	}
	h := &handlers{Deps: d, router: r}
	r.Register(
		Command{Name: "start", Description: "subscribe to jackpot updates", Access: AccessEveryone, Handle: h.start},
		Command{Name: "unsubscribe", Description: "stop jackpot updates", Access: AccessEveryone, Handle: h.unsubscribe},
		Command{Name: "status", Description: "current jackpot and next draw", Access: AccessEveryone, Handle: h.status},
		Command{Name: "help", Description: "list commands", Access: AccessEveryone, Handle: h.help},
		Command{Name: "listsubs", Description: "list subscribers", Access: AccessAdmin, Handle: h.listSubs},
		Command{Name: "broadcast", Description: "send the current update to every subscriber now", Access: AccessAdmin, Timeout: 10 * time.Minute, Handle: h.broadcast},
	)
}

type handlers struct {
	Deps
	router *Router
}

func (h *handlers) start(ctx context.Context, req *Request) error {
	if err := h.Subscriptions.AddRecipient(ctx, req.Chat.ChatID); err != nil {
		_ = req.Reply(ctx, "⚠️ Could not subscribe right now, please try again later.", nil)
		return err
	}
	req.Logger.Info("subscribed")
	return req.Reply(ctx, "✅ Subscribed to TOTO prize updates!", nil)
}

func (h *handlers) unsubscribe(ctx context.Context, req *Request) error {
	if err := h.Subscriptions.RemoveRecipient(ctx, req.Chat.ChatID); err != nil {
		_ = req.Reply(ctx, "⚠️ Could not unsubscribe right now, please try again later.", nil)
		return err
	}
	req.Logger.Info("unsubscribed")
	return req.Reply(ctx, "✅ You have been unsubscribed.", nil)
}

func (h *handlers) status(ctx context.Context, req *Request) error {
	res, err := h.Status.Current(ctx)
	if err != nil {
		_ = req.Reply(ctx, "⚠️ Could not read the current draw, please try again later.", nil)
		return err
	}
	return req.Reply(ctx, StatusText(res, h.Clock.Now(), h.Location()), nil)
}

// StatusText renders the /status reply as plain text.
func StatusText(res drawcache.Lookup, now time.Time, loc *time.Location) string {
	jackpot, drawAt := "N/A", "N/A"
	var st draw.State
	// A half-populated state is no state.
	if res.State != nil && res.State.Valid() {
		st = *res.State
		jackpot = strings.TrimSpace(st.Jackpot)
		drawAt = strings.TrimSpace(st.DrawAt)
	}
	lines := []string{
		"🏆 Prize: " + jackpot,
		"📅 Next Draw: " + drawAt,
	}
	if st.Valid() {
		if at, err := draw.ParseDrawTime(st.DrawAt, loc); err == nil && at.After(now) {
			lines = append(lines, "⏳ Time left: "+FormatRemaining(at.Sub(now)))
		}
	}
	if res.Degraded {
		lines = append(lines, "", "⚠️ Live source unavailable, showing the last known draw.")
	}
	return strings.Join(lines, "\n")
}

// FormatRemaining renders a positive duration as "2d 3h 15m" with minute precision.
func FormatRemaining(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	d = d.Truncate(time.Minute)
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	mins := int(d / time.Minute)

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, strconv.Itoa(days)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.Itoa(hours)+"h")
	}
	if mins > 0 {
		parts = append(parts, strconv.Itoa(mins)+"m")
	}
	return strings.Join(parts, " ")
}

func (h *handlers) help(ctx context.Context, req *Request) error {
	var public, admin []tgui.H
	for _, c := range h.router.Commands() {
		line := tgui.Cat(tgui.Code("/"+c.Name), tgui.Raw(" - "), tgui.Esc(c.Description))
		if c.Access == AccessAdmin {
			admin = append(admin, line)
		} else {
			public = append(public, line)
		}
	}
	rows := append([]tgui.H{tgui.B("📚 Commands")}, public...)
	if req.Admin && len(admin) > 0 {
		rows = append(rows, tgui.B("🔒 Admin"))
		rows = append(rows, admin...)
	}
	return req.Reply(ctx, string(tgui.Lines(rows...)), &transport.SendOptions{ParseMode: tgui.ParseModeHTML, DisablePreview: true})
}

func (h *handlers) listSubs(ctx context.Context, req *Request) error {
	ids, err := h.Subscriptions.ListRecipients(ctx)
	if err != nil {
		_ = req.Reply(ctx, "⚠️ Could not list subscribers.", nil)
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Subscribers (%d):", len(ids))
	for i, id := range ids {
		if i == listLimit {
			break
		}
		b.WriteByte('\n')
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return req.Reply(ctx, b.String(), nil)
}

func (h *handlers) broadcast(ctx context.Context, req *Request) error {
	if h.Notify == nil {
		return req.Reply(ctx, "Broadcast is not available.", nil)
	}
	rep, err := h.Notify(ctx)
	if err != nil {
		_ = req.Reply(ctx, "⚠️ Broadcast failed: "+tgui.TruncRunes(err.Error(), 300), nil)
		return err
	}
	req.Logger.Info("manual broadcast", logx.String("report", rep.ID.String()), logx.Int("sent", rep.Succeeded), logx.Int("failed", rep.Failed))
	text := fmt.Sprintf("Broadcast sent to %d subscribers.", rep.Succeeded)
	if rep.Failed > 0 {
		text += fmt.Sprintf("\n%d of %d deliveries failed.", rep.Failed, rep.Attempted)
	}
	return req.Reply(ctx, text, nil)
}
