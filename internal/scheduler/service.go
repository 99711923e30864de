package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"totobot/internal/draw"
	logx "totobot/pkg/logx"
)

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var specParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether Add would accept spec.
func ValidateSpec(spec string) error {
	_, err := normalize(spec)
	return err
}

func normalize(spec string) (string, error) {
	ps, err := ParseSchedule(spec)
	if err != nil {
		return "", err
	}
	norm := ps.CronSpec()
	if _, err := specParser.Parse(norm); err != nil {
		return "", err
	}
	return norm, nil
}

type Config struct {
	Timezone string // IANA zone; empty means Asia/Singapore
}

type Job func(ctx context.Context) error

type jobDef struct {
	name    string
	spec    string // normalized for the cron parser
	timeout time.Duration
	job     Job
	entry   cron.EntryID
}

type Service struct {
	mu sync.Mutex

	log  logx.Logger
	cfg  Config
	loc  *time.Location
	c    *cron.Cron
	defs []*jobDef

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{cfg: cfg, log: log}
	s.loc = s.resolveLocation(cfg.Timezone)
	return s
}

// Add registers a job. Adding after Start schedules it immediately.
func (s *Service) Add(name, spec string, timeout time.Duration, job Job) error {
	if job == nil {
		return fmt.Errorf("job %q: nil func", name)
	}
	norm, err := normalize(spec)
	if err != nil {
		return fmt.Errorf("job %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.defs {
		if d.name == name {
			return fmt.Errorf("job %q already registered", name)
		}
	}
	d := &jobDef{name: name, spec: norm, timeout: timeout, job: job}
	s.defs = append(s.defs, d)
	if s.c != nil {
		return s.addCronLocked(d)
	}
	return nil
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.startCronLocked()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.defs)))
}

// Stop halts scheduling, cancels running jobs and waits for them or ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.runCancel
	s.c, s.runCancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	done := c.Stop().Done()
	if cancel != nil {
		cancel()
	}
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; jobs still running")
	}
}

// Apply moves every job to a new zone when the resolved timezone changes.
// The rebuild gives each job a fresh SkipIfStillRunning wrapper, so a run
// still going under the old schedule may overlap one run under the new one.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	loc := s.resolveLocation(cfg.Timezone)
	if loc.String() == s.loc.String() {
		return
	}
	s.loc = loc
	if s.c == nil {
		return
	}
	// Running jobs finish in the background; only the schedule is rebuilt.
	s.c.Stop()
	s.startCronLocked()
	s.log.Info("scheduler restarted", logx.String("tz", s.loc.String()))
}

func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Next reports the next fire time of the named job.
func (s *Service) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}, false
	}
	for _, d := range s.defs {
		if d.name == name {
			e := s.c.Entry(d.entry)
			if !e.Valid() || e.Next.IsZero() {
				return time.Time{}, false
			}
			return e.Next, true
		}
	}
	return time.Time{}, false
}

func (s *Service) startCronLocked() {
	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithParser(specParser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, d := range s.defs {
		if err := s.addCronLocked(d); err != nil {
			s.log.Error("schedule rejected", logx.String("job", d.name), logx.String("spec", d.spec), logx.Err(err))
		}
	}
	s.c.Start()
}

func (s *Service) addCronLocked(d *jobDef) error {
	runCtx := s.runCtx
	id, err := s.c.AddFunc(d.spec, func() { s.run(runCtx, d) })
	if err != nil {
		return err
	}
	d.entry = id
	return nil
}

func (s *Service) run(parent context.Context, d *jobDef) {
	if parent == nil || parent.Err() != nil {
		return
	}
	ctx := parent
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, d.timeout)
		defer cancel()
	}
	start := time.Now()
	s.log.Info("job started", logx.String("job", d.name))
	if err := d.job(ctx); err != nil {
		s.log.Error("job failed", logx.String("job", d.name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Info("job finished", logx.String("job", d.name), logx.Duration("took", time.Since(start)))
}

func (s *Service) resolveLocation(tz string) *time.Location {
	loc, err := draw.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, using default", logx.String("tz", tz), logx.Err(err))
		return draw.DefaultLocation()
	}
	return loc
}
