package draw

import "strings"

// State is the current knowledge about the next draw.
//
// Jackpot is opaque display text and is never parsed. DrawAt is the textual draw
// time as published. Both are set or neither is; see Valid.
type State struct {
	Jackpot string `json:"jackpot"`
	DrawAt  string `json:"draw_at"`
}

// Valid reports whether both fields are present. A half-populated State is
// treated as no state at all.
func (s State) Valid() bool {
	return strings.TrimSpace(s.Jackpot) != "" && strings.TrimSpace(s.DrawAt) != ""
}

// Tier identifies which lookup path served a State.
type Tier int

const (
	TierNone Tier = iota
	TierMemory
	TierStore
	TierLive
)

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierStore:
		return "store"
	case TierLive:
		return "live"
	default:
		return "none"
	}
}
