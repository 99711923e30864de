// Package bot routes chat commands (/start, /status, ...) to their handlers
// through a middleware chain and a bounded worker pool.
package bot

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"totobot/internal/metrics"
	rtsup "totobot/internal/runtime/supervisor"
	"totobot/internal/transport"
	logx "totobot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessAdmin
)

type Command struct {
	Name        string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // 0 uses the router default
	Handle      HandlerFunc
}

type Request struct {
	Chat         transport.ChatTarget
	FromID       int64
	FromUsername string
	Command      string
	Args         []string
	ReqID        string
	Admin        bool
	Logger       logx.Logger

	sender transport.Sender
}

// Reply sends text back to the chat the command came from.
func (r *Request) Reply(ctx context.Context, text string, opt *transport.SendOptions) error {
	_, err := r.sender.SendText(ctx, r.Chat, text, opt)
	return err
}

type Options struct {
	// Username is the bot's own name; "/cmd@other" addressed to a different bot is ignored.
	Username       string
	OwnerUserIDs   []int64
	AdminUsernames []string
	CommandTimeout time.Duration
	Workers        int
	QueueSize      int
}

type Router struct {
	log    logx.Logger
	sender transport.Sender

	username string
	timeout  time.Duration
	workers  int

	mu     sync.RWMutex
	cmds   map[string]Command
	order  []string
	owners []int64
	admins []string

	jobs chan func()
}

func NewRouter(sender transport.Sender, opts Options, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 60 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	r := &Router{
		log:      log,
		sender:   sender,
		username: strings.TrimPrefix(strings.TrimSpace(opts.Username), "@"),
		timeout:  opts.CommandTimeout,
		workers:  opts.Workers,
		cmds:     map[string]Command{},
		jobs:     make(chan func(), opts.QueueSize),
	}
	r.SetAdmins(opts.OwnerUserIDs, opts.AdminUsernames)
	return r
}

// Register adds or replaces commands. Names are matched case-insensitively.
func (r *Router) Register(cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		if _, exists := r.cmds[name]; !exists {
			r.order = append(r.order, name)
		}
		r.cmds[name] = c
	}
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.cmds[n])
	}
	return out
}

// SetAdmins replaces the admin lists. Safe to call during hot reload.
func (r *Router) SetAdmins(owners []int64, usernames []string) {
	names := make([]string, 0, len(usernames))
	for _, u := range usernames {
		if u = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "@")); u != "" {
			names = append(names, u)
		}
	}
	r.mu.Lock()
	r.owners = append([]int64(nil), owners...)
	r.admins = names
	r.mu.Unlock()
}

// IsAdmin reports whether the sender is an owner id or a configured admin username.
func (r *Router) IsAdmin(fromID int64, username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fromID != 0 && slices.Contains(r.owners, fromID) {
		return true
	}
	username = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	return username != "" && slices.Contains(r.admins, username)
}

// PublishMenu sends the public commands to the platform menu.
func (r *Router) PublishMenu(ctx context.Context, up transport.CommandMenuUpdater) error {
	var menu []transport.BotCommand
	for _, c := range r.Commands() {
		if c.Access != AccessEveryone {
			continue
		}
		menu = append(menu, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	return up.UpdateMenuCommands(ctx, menu)
}

// ParseCommand splits "/cmd@bot arg1 arg2" into the lower-cased command, the
// addressed bot (may be empty) and the arguments. ok is false for plain text.
func ParseCommand(text string) (cmd, botName string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", "", nil, false
	}
	word := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word, botName = word[:i], word[i+1:]
	}
	if word == "" {
		return "", "", nil, false
	}
	return strings.ToLower(word), botName, fields[1:], true
}

// route resolves an update into a runnable job. It returns nil when the
// update is not a command for this bot.
func (r *Router) route(up transport.Update) func(ctx context.Context) {
	msg := up.Message
	if msg == nil {
		return nil
	}
	name, botName, args, ok := ParseCommand(msg.Text)
	if !ok {
		return nil
	}
	if botName != "" && r.username != "" && !strings.EqualFold(botName, r.username) {
		return nil
	}

	r.mu.RLock()
	cmd, found := r.cmds[name]
	r.mu.RUnlock()
	if !found {
		return nil
	}

	chat := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	admin := r.IsAdmin(msg.FromID, msg.FromUsername)
	if cmd.Access == AccessAdmin && !admin {
		return func(ctx context.Context) {
			metrics.CommandsTotal.WithLabelValues(cmd.Name, "denied").Inc()
			r.log.Info("unauthorized command", logx.String("cmd", cmd.Name), logx.Int64("from_id", msg.FromID), logx.String("from", msg.FromUsername))
			_, _ = r.sender.SendText(ctx, chat, "Unauthorized.", nil)
		}
	}

	rid := uuid.NewString()
	req := &Request{
		Chat:         chat,
		FromID:       msg.FromID,
		FromUsername: msg.FromUsername,
		Command:      cmd.Name,
		Args:         args,
		ReqID:        rid,
		Admin:        admin,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.String("cmd", cmd.Name),
		),
		sender: r.sender,
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	final := Chain(
		cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWMetrics(),
		MWTimeout(timeout),
	)
	return func(ctx context.Context) { _ = final(ctx, req) }
}

// Handle routes and runs one update synchronously.
func (r *Router) Handle(ctx context.Context, up transport.Update) {
	if job := r.route(up); job != nil {
		job(ctx)
	}
}

// Run consumes updates until ctx ends or the channel closes, running commands
// on a bounded worker pool. A full queue answers "busy" instead of blocking the poller.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log))
	for i := 0; i < r.workers; i++ {
		sup.GoRestart("command.worker."+strconv.Itoa(i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-r.jobs:
					if !ok {
						return nil
					}
					job()
				}
			}
		}, 200*time.Millisecond, 5*time.Second, true)
	}
	r.log.Info("command dispatcher started", logx.Int("workers", r.workers), logx.Int("queue_cap", cap(r.jobs)))

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			job := r.route(up)
			if job == nil {
				continue
			}
			select {
			case r.jobs <- func() { job(sup.Context()) }:
			default:
				if up.Message != nil {
					chat := transport.ChatTarget{ChatID: up.Message.ChatID, ThreadID: up.Message.ThreadID}
					_, _ = r.sender.SendText(ctx, chat, "Busy, try again shortly.", nil)
				}
			}
		}
	}
}
