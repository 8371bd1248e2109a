// Package launcher starts matchmaking sessions for a player and relays the
// platform's lifecycle events back to a single observer.
//
// A session moves Idle -> Presenting when the platform's matchmaking sheet
// has been presented on the host screen. Every platform event ends the
// session: the sheet is dismissed exactly once, the launcher returns to Idle
// and only then is the observer called. Failures that happen before anything
// is presented are reported the same way, as Failed events, and never leave
// Idle.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"TurnMatch/internal/matchmaker"
	"TurnMatch/internal/metrics"
	"TurnMatch/internal/utils"

	"github.com/charmbracelet/log"
)

var (
	ErrInvalidRange            = matchmaker.ErrInvalidRange
	ErrNotAuthenticated        = matchmaker.ErrNotAuthenticated
	ErrPresentationUnavailable = errors.New("presentation unavailable")
	ErrAlreadyPresenting       = errors.New("matchmaking already presented")
	ErrClosed                  = errors.New("launcher closed")
)

// PlatformError wraps any failure surfaced by the matchmaking platform.
type PlatformError struct {
	Err error
}

func (e *PlatformError) Error() string {
	return "platform: " + e.Err.Error()
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// HostScreen presents and dismisses the matchmaking sheet.
type HostScreen interface {
	Present(ctx context.Context, sheet *matchmaker.Sheet) error
	Dismiss(ctx context.Context, sheetID string) error
}

// HostRef is a non-owning handle on a host screen. Screen reports false once
// the host is gone; the launcher resolves it again before every use and
// never keeps the result.
type HostRef interface {
	Screen() (HostScreen, bool)
}

// Platform is the matchmaking service the launcher drives.
type Platform interface {
	ValidateRange(minPlayers, maxPlayers int) error
	Authenticated(ctx context.Context, player string) (bool, error)
	// OpenSheet must not call d before it returns.
	OpenSheet(ctx context.Context, t matchmaker.Ticket, d matchmaker.Delegate) (*matchmaker.Sheet, error)
	CloseSheet(ctx context.Context, sheetID string)
}

type Event = matchmaker.Event

// Observer receives every relayed event, one at a time.
type Observer func(Event)

type Request struct {
	MinPlayers int
	MaxPlayers int
	// Pool 为空时由平台决定
	Pool string
	Host HostRef
}

type State int

const (
	Idle State = iota
	Presenting
)

func (s State) String() string {
	if s == Presenting {
		return "presenting"
	}
	return "idle"
}

// Launcher runs matchmaking sessions for one player, one session at a time.
type Launcher struct {
	player   string
	platform Platform
	observer Observer
	log      *log.Logger

	mu      sync.Mutex
	state   State
	sheetID string
	host    HostRef
	closed  bool
}

func New(player string, platform Platform, observer Observer, logger *log.Logger) *Launcher {
	if logger == nil {
		logger = utils.Named("launcher")
	}
	return &Launcher{
		player:   player,
		platform: platform,
		observer: observer,
		log:      logger.With("player", player),
	}
}

func (l *Launcher) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SheetID is the presented sheet, or "" when idle.
func (l *Launcher) SheetID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sheetID
}

// Start begins a matchmaking session. It returns as soon as the sheet is
// presented; every outcome, failures included, reaches the observer.
func (l *Launcher) Start(ctx context.Context, req Request) {
	if err := l.start(ctx, req); err != nil {
		l.log.Warn("matchmaking not started", "min", req.MinPlayers, "max", req.MaxPlayers, "err", err)
		l.emit(Event{Kind: matchmaker.Failed, Err: err})
	}
}

func (l *Launcher) start(ctx context.Context, req Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.state == Presenting {
		return ErrAlreadyPresenting
	}
	if err := l.platform.ValidateRange(req.MinPlayers, req.MaxPlayers); err != nil {
		return classify(err)
	}
	if req.Host == nil {
		return ErrPresentationUnavailable
	}
	if _, ok := req.Host.Screen(); !ok {
		return ErrPresentationUnavailable
	}

	ok, err := l.platform.Authenticated(ctx, l.player)
	if err != nil {
		return &PlatformError{Err: err}
	}
	if !ok {
		return ErrNotAuthenticated
	}

	sheet, err := l.platform.OpenSheet(ctx, matchmaker.Ticket{
		Player:     l.player,
		Pool:       req.Pool,
		MinPlayers: req.MinPlayers,
		MaxPlayers: req.MaxPlayers,
	}, l.deliver)
	if err != nil {
		return classify(err)
	}

	// 宿主可能在打开界面期间消失
	screen, ok := req.Host.Screen()
	if !ok {
		l.platform.CloseSheet(ctx, sheet.ID)
		return ErrPresentationUnavailable
	}
	if err := screen.Present(ctx, sheet); err != nil {
		l.platform.CloseSheet(ctx, sheet.ID)
		return fmt.Errorf("%w: %v", ErrPresentationUnavailable, err)
	}

	l.state = Presenting
	l.sheetID = sheet.ID
	l.host = req.Host
	metrics.Presentations.Inc()
	l.log.Info("matchmaking presented", "sheet", sheet.ID, "min", req.MinPlayers, "max", req.MaxPlayers)
	return nil
}

// deliver is the platform delegate. Events for any sheet other than the one
// presented are dropped.
func (l *Launcher) deliver(ev Event) {
	l.mu.Lock()
	if l.closed || l.state != Presenting || ev.SheetID != l.sheetID {
		l.mu.Unlock()
		l.log.Debug("discarding stale event", "sheet", ev.SheetID, "event", ev.Kind)
		return
	}
	l.dismissLocked(context.Background())
	l.mu.Unlock()

	if ev.Kind == matchmaker.Failed {
		ev.Err = classify(ev.Err)
	}
	l.log.Info("matchmaking finished", "sheet", ev.SheetID, "event", ev.Kind)
	l.emit(ev)
}

// Close cancels the session in flight, if any, and discards every event
// still pending for it. Later calls to Start fail with ErrClosed.
func (l *Launcher) Close(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.state == Presenting {
		l.platform.CloseSheet(ctx, l.sheetID)
		l.dismissLocked(ctx)
	}
}

// dismissLocked hides the presented sheet and returns to Idle. A host that
// went away in the meantime has nothing left to dismiss.
func (l *Launcher) dismissLocked(ctx context.Context) {
	id, host := l.sheetID, l.host
	l.state, l.sheetID, l.host = Idle, "", nil
	metrics.Presentations.Dec()

	screen, ok := host.Screen()
	if !ok {
		l.log.Debug("host gone before dismiss", "sheet", id)
		return
	}
	if err := screen.Dismiss(ctx, id); err != nil {
		l.log.Warn("dismiss failed", "sheet", id, "err", err)
	}
}

func (l *Launcher) emit(ev Event) {
	metrics.LauncherEvents.WithLabelValues(ev.Kind.String()).Inc()
	if l.observer != nil {
		l.observer(ev)
	}
}

// classify keeps the launcher's own errors as they are and wraps anything
// else as a PlatformError.
func classify(err error) error {
	var pe *PlatformError
	switch {
	case err == nil:
		return &PlatformError{Err: errors.New("unknown failure")}
	case errors.As(err, &pe),
		errors.Is(err, ErrInvalidRange),
		errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrPresentationUnavailable),
		errors.Is(err, ErrAlreadyPresenting),
		errors.Is(err, ErrClosed):
		return err
	default:
		return &PlatformError{Err: err}
	}
}
