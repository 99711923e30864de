package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"totobot/internal/draw"
	"totobot/internal/metrics"
	logx "totobot/pkg/logx"
)

const (
	DefaultURL = "https://www.singaporepools.com.sg/en/product/pages/toto_results.aspx"

	jackpotXPath = `//div[text()[contains(.,'Next Jackpot')]]/following-sibling::span`
	drawAtXPath  = `//div[text()[contains(.,'Next Draw')]]/following-sibling::div[@class='toto-draw-date']`
)

type BrowserConfig struct {
	URL        string
	Timeout    time.Duration // whole fetch; 0 means 45s
	RenderWait time.Duration // extra settle time after the nodes appear
	Headless   bool
	ExecPath   string // optional Chrome binary
	UserAgent  string
}

// Browser renders the results page in headless Chrome and reads the
// "Next Jackpot" and "Next Draw" nodes.
type Browser struct {
	cfg BrowserConfig
	log logx.Logger
}

func NewBrowser(cfg BrowserConfig, log logx.Logger) *Browser {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Browser{cfg: cfg, log: log}
}

func (b *Browser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}
	if b.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.cfg.UserAgent))
	}
	return opts
}

func (b *Browser) Fetch(ctx context.Context) (draw.State, error) {
	start := time.Now()
	st, err := b.fetch(ctx)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		b.log.Debug("browser fetch failed", logx.String("url", b.cfg.URL), logx.Duration("took", time.Since(start)), logx.Err(err))
		return draw.State{}, err
	}
	b.log.Debug("browser fetch ok", logx.String("jackpot", st.Jackpot), logx.String("draw_at", st.DrawAt), logx.Duration("took", time.Since(start)))
	return st, nil
}

func (b *Browser) fetch(ctx context.Context) (draw.State, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()
	runCtx, cancel := context.WithTimeout(tabCtx, b.cfg.Timeout)
	defer cancel()

	var jackpot, drawAt string
	actions := []chromedp.Action{
		chromedp.Navigate(b.cfg.URL),
		chromedp.WaitVisible(jackpotXPath, chromedp.BySearch),
	}
	if b.cfg.RenderWait > 0 {
		actions = append(actions, chromedp.Sleep(b.cfg.RenderWait))
	}
	actions = append(actions,
		chromedp.Text(jackpotXPath, &jackpot, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.Text(drawAtXPath, &drawAt, chromedp.BySearch, chromedp.NodeVisible),
	)
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return draw.State{}, fmt.Errorf("%w: %s: timed out after %s", ErrFetch, b.cfg.URL, b.cfg.Timeout)
		}
		return draw.State{}, fmt.Errorf("%w: %s: %w", ErrFetch, b.cfg.URL, err)
	}
	return Complete(jackpot, drawAt)
}

// Complete builds a State from raw node text; either field blank is ErrIncomplete.
func Complete(jackpot, drawAt string) (draw.State, error) {
	st := draw.State{Jackpot: strings.TrimSpace(jackpot), DrawAt: strings.TrimSpace(drawAt)}
	if !st.Valid() {
		return draw.State{}, fmt.Errorf("%w: %w (jackpot=%q draw_at=%q)", ErrFetch, ErrIncomplete, st.Jackpot, st.DrawAt)
	}
	return st, nil
}
