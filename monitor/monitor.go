// Package monitor wraps a unit of work and emails an operator when it
// ends, whether it returns, fails, or the process is killed.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/Sininliny/Your-Program-is-Terminated/config"
	"github.com/Sininliny/Your-Program-is-Terminated/mail"
	"github.com/Sininliny/Your-Program-is-Terminated/mail/smtp"
)

// ErrMonitorReleased is returned when a Monitor is reused after its
// protected region already exited. A Monitor is single-use.
var ErrMonitorReleased = errors.New("monitor already released")

type state int

const (
	stateIdle state = iota
	stateActive
	stateReleased
)

// Monitor guards one protected region and reports how it ended. Create
// it with New, run the region with Run, exactly once.
type Monitor struct {
	cfg       config.Resolved
	sender    mail.Sender
	ownSender bool
	log       *slog.Logger
	signals   []os.Signal
	program   string
	hostname  string
	notice    bool

	mx    sync.Mutex
	state state

	deliverOnce sync.Once
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithSender replaces the SMTP delivery channel. The Monitor does not
// close an injected sender.
func WithSender(s mail.Sender) Option {
	return func(m *Monitor) {
		m.sender = s
		m.ownSender = false
	}
}

// WithLogger replaces the logger used for secondary delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

// WithSignals replaces the termination signals captured while the
// region runs. Default: interrupt and terminate.
func WithSignals(sigs ...os.Signal) Option {
	return func(m *Monitor) {
		m.signals = sigs
	}
}

// WithStartupNotice enables the "monitoring activated" email at region
// entry, in addition to the termination report.
func WithStartupNotice() Option {
	return func(m *Monitor) {
		m.notice = true
	}
}

// WithProgramName overrides the program identity in report bodies.
// Default: the process executable name.
func WithProgramName(name string) Option {
	return func(m *Monitor) {
		m.program = name
	}
}

// New resolves the configuration and builds a single-use Monitor.
// Incomplete or malformed settings fail here, before any region runs,
// with a *config.ConfigurationError.
func New(cfg config.Config, opts ...Option) (*Monitor, error) {
	resolved, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()

	m := &Monitor{
		cfg:      resolved,
		log:      slog.Default(),
		signals:  []os.Signal{os.Interrupt, syscall.SIGTERM},
		program:  filepath.Base(os.Args[0]),
		hostname: hostname,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.sender == nil {
		m.sender = smtp.NewSender(smtp.Config{
			Host:     resolved.SMTPHost,
			Port:     resolved.SMTPPort,
			Username: resolved.SenderEmail,
			Password: resolved.SenderPassword,
			Proxy:    resolved.Proxy,
		})
		m.ownSender = true
	}

	return m, nil
}

// Run executes fn as the protected region and delivers exactly one
// termination report when it exits. The region's own error (or panic)
// always propagates unchanged; a delivery failure while reporting it is
// logged, never returned in its place.
func (m *Monitor) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := m.activate(); err != nil {
		return err
	}

	started := time.Now()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, m.signals...)
	regionDone := make(chan struct{})
	go m.watchSignals(ctx, sigCh, regionDone, started)

	defer func() {
		signal.Stop(sigCh)
		close(regionDone)
		m.release()
	}()

	if m.notice {
		if err := m.sender.Send(ctx, m.startupNotice(started)); err != nil {
			m.log.Warn("failed to send startup notice", "error", err.Error())
		}
	}

	err, panicked, panicValue, panicStack := m.runRegion(ctx, fn)
	ended := time.Now()

	var out Outcome
	switch {
	case panicked:
		out = panicOutcome(panicValue, panicStack, started, ended)
	case err != nil:
		out = failureOutcome(err, started, ended)
	default:
		out = successOutcome(started, ended)
	}

	if derr := m.deliver(ctx, out); derr != nil {
		// Secondary failure: the region's outcome stays intact.
		m.log.Error("failed to deliver termination report",
			"outcome", string(out.Kind),
			"error", derr.Error(),
		)
	}

	if panicked {
		panic(panicValue)
	}
	return err
}

// Run wraps fn with a single-use Monitor built from cfg.
func Run(ctx context.Context, cfg config.Config, fn func(context.Context) error, opts ...Option) error {
	m, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	return m.Run(ctx, fn)
}

// runRegion executes fn, converting a panic into outcome material
// without consuming it.
func (m *Monitor) runRegion(ctx context.Context, fn func(context.Context) error) (err error, panicked bool, value any, stack string) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			value = r
			stack = currentStack()
		}
	}()

	err = fn(ctx)
	return
}

// watchSignals reports external termination. It runs only while the
// region is active; registration never leaks past the region.
func (m *Monitor) watchSignals(ctx context.Context, sigCh chan os.Signal, regionDone chan struct{}, started time.Time) {
	select {
	case sig := <-sigCh:
		m.handleSignal(ctx, sig, started)
		m.reraise(sig)
	case <-regionDone:
	}
}

// handleSignal delivers the Terminated report synchronously, before the
// signal's default effect is allowed to proceed.
func (m *Monitor) handleSignal(ctx context.Context, sig os.Signal, started time.Time) {
	out := terminatedOutcome(sig, started, time.Now())
	if err := m.deliver(ctx, out); err != nil {
		m.log.Error("failed to deliver termination report",
			"outcome", string(out.Kind),
			"signal", out.Signal,
			"error", err.Error(),
		)
	}
}

// reraise restores the default disposition and re-sends the signal so
// the process still terminates.
func (m *Monitor) reraise(sig os.Signal) {
	signal.Reset(sig)
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		os.Exit(1)
	}
	if err := p.Signal(sig); err != nil {
		os.Exit(1)
	}
}

// deliver performs the single delivery attempt for this Monitor. The
// signal path and the region-exit path race at most once; whichever
// arrives first sends, the other becomes a no-op.
func (m *Monitor) deliver(ctx context.Context, out Outcome) error {
	var err error
	m.deliverOnce.Do(func() {
		// The region's context may already be canceled; delivery
		// still has to happen.
		err = m.sender.Send(context.WithoutCancel(ctx), m.report(out))
	})
	return err
}

func (m *Monitor) activate() error {
	m.mx.Lock()
	defer m.mx.Unlock()

	switch m.state {
	case stateActive:
		return errors.New("monitor region already running")
	case stateReleased:
		return ErrMonitorReleased
	}
	m.state = stateActive
	return nil
}

func (m *Monitor) release() {
	m.mx.Lock()
	m.state = stateReleased
	m.mx.Unlock()

	if m.ownSender {
		_ = m.sender.Close()
	}
}
