// Package kiosk is the survey terminal's screen flow: Home, Reason and
// ThankYou, with the input guards, auto-reset, idle watchdog and admin
// entry that keep an unattended kiosk usable.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/dkalashnik/kiosk-survey/pkg/clock"
	"github.com/dkalashnik/kiosk-survey/pkg/config"
	"github.com/dkalashnik/kiosk-survey/pkg/kioskcfg"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/metrics"
	"github.com/dkalashnik/kiosk-survey/pkg/record"
)

// Timings are the engine's fixed delays.
type Timings struct {
	ThankYou   time.Duration
	Idle       time.Duration
	Debounce   time.Duration
	InputLock  time.Duration
	LongPress  time.Duration
	AdminClose time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ThankYou:   1500 * time.Millisecond,
		Idle:       30 * time.Second,
		Debounce:   350 * time.Millisecond,
		InputLock:  400 * time.Millisecond,
		LongPress:  1200 * time.Millisecond,
		AdminClose: 550 * time.Millisecond,
	}
}

// withDefaults fills unset delays. A zero debounce or input lock is kept,
// which disables that guard.
func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t == (Timings{}) {
		return d
	}
	if t.ThankYou <= 0 {
		t.ThankYou = d.ThankYou
	}
	if t.Idle <= 0 {
		t.Idle = d.Idle
	}
	if t.Debounce < 0 {
		t.Debounce = 0
	}
	if t.InputLock < 0 {
		t.InputLock = 0
	}
	if t.LongPress <= 0 {
		t.LongPress = d.LongPress
	}
	if t.AdminClose <= 0 {
		t.AdminClose = d.AdminClose
	}
	return t
}

// Submitter hands a finished record off without blocking.
type Submitter interface {
	Submit(rec record.Record)
}

// ConfigAdmin is the PIN-gated config surface behind the admin form.
type ConfigAdmin interface {
	Get() kioskcfg.Config
	Admin(ctx context.Context, form kioskcfg.AdminForm) (kioskcfg.Config, error)
	TestConnection(ctx context.Context, url string) error
}

// ScreenObserver is told every time the screen returns to Home.
type ScreenObserver interface {
	ScreenReset(ctx context.Context)
}

// StatusSource feeds the connectivity chip.
type StatusSource interface {
	Online() bool
	Queued(ctx context.Context) int
}

type Options struct {
	Taxonomy  *config.Taxonomy
	Builder   *record.Builder
	Submitter Submitter
	Admin     ConfigAdmin
	Observer  ScreenObserver
	Status    StatusSource
	Clock     clock.Clock
	Timings   Timings
	Logger    log.Printer
}

// Engine owns the single kiosk session. All mutations, including timer
// callbacks, are serialized by mu. Network and storage work triggered by
// the engine runs outside the lock.
type Engine struct {
	mu sync.Mutex

	machine   *fsm.FSM
	session   session
	guard     inputGuard
	resetter  *Resetter
	taxonomy  *config.Taxonomy
	builder   *record.Builder
	submitter Submitter
	admin     ConfigAdmin
	observer  ScreenObserver
	status    StatusSource
	clock     clock.Clock
	timings   Timings
	logger    log.Printer

	idleTimer  *clock.Timer
	idleToken  uint64
	pressTimer *clock.Timer
	pressToken uint64
	closeTimer *clock.Timer
	closeToken uint64
	closed     bool

	wg sync.WaitGroup
}

func New(opts Options) (*Engine, error) {
	if err := opts.Taxonomy.Validate(); err != nil {
		return nil, fmt.Errorf("kiosk: %w", err)
	}
	if opts.Builder == nil {
		return nil, errors.New("kiosk: record builder is nil")
	}
	if opts.Submitter == nil {
		return nil, errors.New("kiosk: submitter is nil")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	timings := opts.Timings.withDefaults()

	e := &Engine{
		machine:   NewMachine(StateHome),
		session:   newSession(),
		guard:     inputGuard{debounce: timings.Debounce, lock: timings.InputLock},
		resetter:  NewResetter(clk),
		taxonomy:  opts.Taxonomy,
		builder:   opts.Builder,
		submitter: opts.Submitter,
		admin:     opts.Admin,
		observer:  opts.Observer,
		status:    opts.Status,
		clock:     clk,
		timings:   timings,
		logger:    log.OrDefault(opts.Logger),
	}

	e.mu.Lock()
	e.armIdleLocked()
	e.mu.Unlock()
	return e, nil
}

// Screen returns the current screen name.
func (e *Engine) Screen() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.Current()
}

// ResetPending reports whether an auto-reset is scheduled.
func (e *Engine) ResetPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetter.Pending()
}

// Tap selects option on the current screen: a primary option on Home or a
// reason on Reason.
func (e *Engine) Tap(ctx context.Context, option string) TapResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Disabled
	}
	e.armIdleLocked()

	result := e.tapLocked(ctx, option)
	metrics.TapsTotal.WithLabelValues(string(result)).Inc()
	if result != Accepted {
		log.Debugf(e.logger, "[kiosk.Tap] option=%q ignored: %s (screen=%s)", option, result, e.machine.Current())
	}
	return result
}

func (e *Engine) tapLocked(ctx context.Context, option string) TapResult {
	if !e.session.interactive || e.session.other.open || e.session.admin.open {
		return Disabled
	}

	screen := e.machine.Current()
	switch screen {
	case StateHome:
		opt, ok := e.taxonomy.Option(option)
		if !ok {
			return Unknown
		}
		if r := e.guard.admit(e.clock.Now()); r != Accepted {
			return r
		}
		e.resetter.Cancel()
		if err := e.machine.Event(ctx, EventSelectPrimary); err != nil && !isNoTransitionError(err) {
			log.Errorf(e.logger, "[kiosk.Tap] select_primary failed: %v", err)
			return Disabled
		}
		e.session.primary = opt.Text
		e.session.tag = opt.Tag
		e.logger.Printf("[kiosk.Tap] primary=%q", opt.Text)
		return Accepted

	case StateReason:
		if !e.taxonomy.HasReason(e.session.tag, option) {
			return Unknown
		}
		if r := e.guard.admit(e.clock.Now()); r != Accepted {
			return r
		}
		e.resetter.Cancel()
		if e.taxonomy.IsOther(option) {
			e.session.other = otherFormState{open: true}
			return Accepted
		}
		e.enterThankYouLocked(ctx, option, nil)
		return Accepted

	default:
		return Disabled
	}
}

// Back returns from Reason to Home. It is debounced like a tap.
func (e *Engine) Back(ctx context.Context) TapResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Disabled
	}
	e.armIdleLocked()

	result := Disabled
	if e.machine.Current() == StateReason && !e.session.other.open && !e.session.admin.open {
		result = e.guard.admit(e.clock.Now())
		if result == Accepted {
			e.resetter.Cancel()
			e.goHomeLocked(ctx, EventBack)
		}
	}
	metrics.TapsTotal.WithLabelValues(string(result)).Inc()
	return result
}

// SubmitOther validates the free-text sub-form. On success the kiosk moves
// to ThankYou with the Other reason; otherwise the inline message is
// returned and the form stays open.
func (e *Engine) SubmitOther(ctx context.Context, employee, comment string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.session.other.open {
		return "", false
	}
	e.armIdleLocked()

	other, msg := validateOther(employee, comment)
	if msg != "" {
		e.session.other.message = msg
		return msg, false
	}
	e.session.other = otherFormState{}
	e.enterThankYouLocked(ctx, e.taxonomy.Other(), &other)
	return "", true
}

// CancelOther closes the sub-form and leaves the kiosk on Reason.
func (e *Engine) CancelOther() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.armIdleLocked()
	e.session.other = otherFormState{}
}

// Activity records operator presence (pointer moves, key presses) for the
// idle watchdog.
func (e *Engine) Activity() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.armIdleLocked()
}

func (e *Engine) enterThankYouLocked(ctx context.Context, reason string, other *record.Other) {
	if err := e.machine.Event(ctx, EventSelectReason); err != nil && !isNoTransitionError(err) {
		log.Errorf(e.logger, "[kiosk.enterThankYou] select_reason failed: %v", err)
		return
	}
	e.session.reason = reason
	e.session.interactive = false

	detail := fmt.Sprintf("%s · %s", e.session.primary, reason)
	if other != nil {
		detail += " · #" + other.Employee
	}
	e.session.thankYou = &ThankYouView{Title: MsgThankYou, Detail: detail}

	rec := e.builder.Build(ctx, e.session.primary, reason, other)
	e.submitter.Submit(rec)
	e.logger.Printf("[kiosk.enterThankYou] %s id=%s", detail, rec.Meta.ID)

	e.resetter.Schedule(e.timings.ThankYou, e.onResetTimer)
}

func (e *Engine) onResetTimer(token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.resetter.Claim(token) {
		return
	}
	e.goHomeLocked(context.Background(), EventReset)
}

// goHomeLocked clears the session and re-renders the full option set. It
// does not touch the admin form.
func (e *Engine) goHomeLocked(ctx context.Context, event string) {
	e.resetter.Cancel()
	if e.machine.Can(event) {
		if err := e.machine.Event(ctx, event); err != nil && !isNoTransitionError(err) {
			log.Warnf(e.logger, "[kiosk.goHome] %s failed: %v, forcing home", event, err)
			e.machine.SetState(StateHome)
		}
	} else if e.machine.Current() != StateHome {
		e.machine.SetState(StateHome)
	}

	admin := e.session.admin
	e.session = newSession()
	e.session.admin = admin

	if e.observer != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.observer.ScreenReset(context.Background())
		}()
	}
}

func (e *Engine) armIdleLocked() {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	e.idleToken++
	token := e.idleToken
	e.idleTimer = e.clock.AfterFunc(e.timings.Idle, func() { e.onIdle(token) })
}

func (e *Engine) onIdle(token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || token != e.idleToken {
		return
	}
	e.idleTimer = nil
	if e.machine.Current() == StateThankYou {
		return
	}
	e.logger.Printf("[kiosk.onIdle] no interaction for %s on %s, returning home", e.timings.Idle, e.machine.Current())
	e.goHomeLocked(context.Background(), EventReset)
}

// Close stops every timer and waits for background observer calls.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.resetter.Cancel()
	for _, t := range []*clock.Timer{e.idleTimer, e.pressTimer, e.closeTimer} {
		if t != nil {
			t.Stop()
		}
	}
	e.mu.Unlock()
	e.wg.Wait()
}
