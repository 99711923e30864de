package telegram

import (
	"context"
	"hash/fnv"

	tele "gopkg.in/telebot.v4"

	"totobot/internal/transport"
	logx "totobot/pkg/logx"
)

// UpdateMenuCommands publishes the command menu (setMyCommands). It only
// calls the API when the list differs from the last one published.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []transport.BotCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	h := fnv.New64a()
	list := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		desc := c.Description
		if desc == "" {
			desc = c.Command
		}
		if len(desc) > 256 {
			desc = desc[:256]
		}
		_, _ = h.Write([]byte(c.Command + "\x00" + desc + "\x00"))
		list = append(list, tele.Command{Text: c.Command, Description: desc})
		if len(list) == 100 {
			break
		}
	}
	sum := h.Sum64()
	if sum == a.menuHash {
		return nil
	}
	if err := a.bot.SetCommands(list); err != nil {
		return err
	}
	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(list)))
	return nil
}
