package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TurnMatch/internal/metrics"
	"TurnMatch/internal/turnmatch"
	"TurnMatch/internal/utils"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// error types
var (
	ErrInvalidRange     = errors.New("invalid player range")
	ErrNotAuthenticated = errors.New("player not authenticated")
	ErrUnknownSheet     = errors.New("unknown matchmaking sheet")
	ErrUnknownAction    = errors.New("unknown sheet action")
)

const (
	// MinSupported 回合制对局最少人数
	MinSupported        = 2
	defaultMaxSupported = 16
	defaultPool         = "default"
	defaultPlayerTTL    = 7 * 24 * 3600
)

// Authenticator reports whether a player holds a live platform session.
type Authenticator interface {
	Authenticated(ctx context.Context, player string) (bool, error)
}

type Options struct {
	// Pool 未指定时使用的匹配池
	Pool string
	// MaxSupported 平台允许的最大人数
	MaxSupported int
	// PlayerTTL 对局记录保留秒数
	PlayerTTL int
	Logger    *log.Logger
}

type sheetEntry struct {
	sheet    *Sheet
	delegate Delegate
}

// Service is the turn-based match platform: it builds matchmaking sheets,
// auto-matches players into matches with open seats and owns match state.
type Service struct {
	repo Repo
	auth Authenticator
	opts Options
	log  *log.Logger
	now  func() time.Time

	mu     sync.Mutex
	sheets map[string]*sheetEntry

	// writeMu 串行化对局记录的 读-改-写
	writeMu sync.Mutex
}

func NewService(repo Repo, auth Authenticator, opts *Options) *Service {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.Pool == "" {
		o.Pool = defaultPool
	}
	if o.MaxSupported < MinSupported {
		o.MaxSupported = defaultMaxSupported
	}
	if o.PlayerTTL <= 0 {
		o.PlayerTTL = defaultPlayerTTL
	}
	if o.Logger == nil {
		o.Logger = utils.Named("matchmaker")
	}
	return &Service{
		repo:   repo,
		auth:   auth,
		opts:   o,
		log:    o.Logger,
		now:    time.Now,
		sheets: make(map[string]*sheetEntry),
	}
}

func (s *Service) MaxSupported() int {
	return s.opts.MaxSupported
}

// ValidateRange checks MinSupported <= min <= max <= MaxSupported.
func (s *Service) ValidateRange(minPlayers, maxPlayers int) error {
	if minPlayers < MinSupported || minPlayers > maxPlayers || maxPlayers > s.opts.MaxSupported {
		return fmt.Errorf("%w: %d..%d (allowed %d..%d)",
			ErrInvalidRange, minPlayers, maxPlayers, MinSupported, s.opts.MaxSupported)
	}
	return nil
}

func (s *Service) Authenticated(ctx context.Context, player string) (bool, error) {
	if s.auth == nil {
		return true, nil
	}
	return s.auth.Authenticated(ctx, player)
}

// OpenSheet builds the matchmaking sheet for t. Events for the sheet go to d.
func (s *Service) OpenSheet(ctx context.Context, t Ticket, d Delegate) (*Sheet, error) {
	if t.Pool == "" {
		t.Pool = s.opts.Pool
	}
	if err := s.ValidateRange(t.MinPlayers, t.MaxPlayers); err != nil {
		return nil, err
	}
	ok, err := s.Authenticated(ctx, t.Player)
	if err != nil {
		return nil, fmt.Errorf("checking session: %w", err)
	}
	if !ok {
		return nil, ErrNotAuthenticated
	}

	matches, err := s.Matches(ctx, t.Player)
	if err != nil {
		// 列表只是展示用，失败不影响匹配
		s.log.Warn("loading matches for sheet", "player", t.Player, "err", err)
		matches = nil
	}

	sheet := &Sheet{
		ID:         uuid.NewString(),
		Player:     t.Player,
		Pool:       t.Pool,
		MinPlayers: t.MinPlayers,
		MaxPlayers: t.MaxPlayers,
		Matches:    matches,
	}
	s.mu.Lock()
	s.sheets[sheet.ID] = &sheetEntry{sheet: sheet, delegate: d}
	s.mu.Unlock()

	s.log.Debug("sheet opened", "sheet", sheet.ID, "player", t.Player, "min", t.MinPlayers, "max", t.MaxPlayers)
	return sheet, nil
}

// CloseSheet discards the sheet; its delegate gets no further events.
func (s *Service) CloseSheet(ctx context.Context, sheetID string) {
	s.mu.Lock()
	delete(s.sheets, sheetID)
	s.mu.Unlock()
}

// OpenSheets 当前未结束的界面数量
func (s *Service) OpenSheets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sheets)
}

// HandleAction applies a user action taken on a sheet. Every action ends the
// sheet and produces exactly one event for its delegate; platform failures
// are delivered as Failed rather than returned.
func (s *Service) HandleAction(ctx context.Context, sheetID string, a Action) error {
	switch a.Kind {
	case ActionPlay, ActionCancel, ActionQuit, ActionFindPlayers:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}

	// 先摘除界面，保证并发操作只有一个生效
	s.mu.Lock()
	e, ok := s.sheets[sheetID]
	delete(s.sheets, sheetID)
	s.mu.Unlock()
	if !ok {
		return ErrUnknownSheet
	}
	sh := e.sheet

	ev := Event{SheetID: sheetID}
	switch a.Kind {
	case ActionPlay:
		m, err := s.AutoMatch(ctx, Ticket{
			Player:     sh.Player,
			Pool:       sh.Pool,
			MinPlayers: sh.MinPlayers,
			MaxPlayers: sh.MaxPlayers,
		})
		ev.Kind, ev.Match, ev.Err = MatchFound, m, err

	case ActionCancel:
		ev.Kind = Canceled

	case ActionQuit:
		m, p, err := s.Quit(ctx, a.MatchID, sh.Player)
		ev.Kind, ev.Match, ev.Participant, ev.Err = PlayerQuit, m, p, err

	case ActionFindPlayers:
		m, err := s.participantMatch(ctx, a.MatchID, sh.Player)
		ev.Kind, ev.Match, ev.Err = FindPlayersRequested, m, err
	}
	if ev.Err != nil {
		ev = Event{Kind: Failed, SheetID: sheetID, Err: ev.Err}
	}

	metrics.PlatformActions.WithLabelValues(string(a.Kind), metrics.Result(ev.Err)).Inc()
	s.log.Info("sheet action", "sheet", sheetID, "player", sh.Player, "action", a.Kind, "event", ev.Kind)

	if e.delegate != nil {
		e.delegate(ev)
	}
	return nil
}

// AutoMatch seats t.Player in a random match of the pool that still has an
// open seat, or creates a new match with the player holding the first turn.
func (s *Service) AutoMatch(ctx context.Context, t Ticket) (*turnmatch.Match, error) {
	if t.Pool == "" {
		t.Pool = s.opts.Pool
	}
	if err := s.ValidateRange(t.MinPlayers, t.MaxPlayers); err != nil {
		return nil, err
	}
	key := poolKey(t.Pool, t.MinPlayers, t.MaxPlayers)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// 玩家已在其中的对局需要放回匹配池
	var skipped []string
	defer func() {
		for _, id := range skipped {
			if err := s.repo.Advertise(ctx, key, id); err != nil {
				s.log.Error("re-advertising match", "match", id, "err", err)
			}
		}
	}()

	now := s.now()
	for {
		id, err := s.repo.PopOpen(ctx, key)
		if err != nil {
			return nil, err
		}
		if id == "" {
			break
		}
		m, err := s.repo.LoadMatch(ctx, id)
		if errors.Is(err, ErrMatchNotFound) {
			continue // 已过期
		}
		if err != nil {
			return nil, err
		}
		if m.Status == turnmatch.MatchEnded || m.OpenSlots() == 0 {
			continue
		}
		if _, seated := m.Participant(t.Player); seated {
			skipped = append(skipped, id)
			continue
		}
		if _, err := m.Seat(t.Player, now); err != nil {
			return nil, err
		}
		if err := s.repo.SaveMatch(ctx, m, s.opts.PlayerTTL); err != nil {
			return nil, err
		}
		if m.OpenSlots() > 0 {
			if err := s.repo.Advertise(ctx, key, m.ID); err != nil {
				return nil, err
			}
		}
		s.log.Info("player seated", "match", m.ID, "player", t.Player, "open", m.OpenSlots())
		s.trace("seated", m)
		return m, nil
	}

	m := turnmatch.New(uuid.NewString(), t.Pool, t.MinPlayers, t.MaxPlayers, t.Player, now)
	if err := s.repo.SaveMatch(ctx, m, s.opts.PlayerTTL); err != nil {
		return nil, err
	}
	if err := s.repo.Advertise(ctx, key, m.ID); err != nil {
		return nil, err
	}
	metrics.MatchesCreated.Inc()
	s.log.Info("match created", "match", m.ID, "player", t.Player, "max", t.MaxPlayers)
	s.trace("created", m)
	return m, nil
}

// Quit records player quitting matchID and returns the match and the
// quitting participant.
func (s *Service) Quit(ctx context.Context, matchID, player string) (*turnmatch.Match, *turnmatch.Participant, error) {
	var quitter turnmatch.Participant
	m, err := s.update(ctx, matchID, func(m *turnmatch.Match) error {
		p, err := m.Quit(player, s.now())
		if err != nil {
			return err
		}
		quitter = *p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return m, &quitter, nil
}

// AddSlots opens n more seats in matchID and puts it back into its pool.
func (s *Service) AddSlots(ctx context.Context, matchID string, n int) (*turnmatch.Match, error) {
	m, err := s.update(ctx, matchID, func(m *turnmatch.Match) error {
		return m.AddSlots(n, s.now())
	})
	if err != nil {
		return nil, err
	}
	if m.OpenSlots() > 0 {
		if err := s.repo.Advertise(ctx, poolKey(m.Pool, m.MinPlayers, m.MaxPlayers), m.ID); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Remove drops player's seat from matchID.
func (s *Service) Remove(ctx context.Context, matchID, player string) (*turnmatch.Match, error) {
	m, err := s.update(ctx, matchID, func(m *turnmatch.Match) error {
		return m.Remove(player, s.now())
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Forget(ctx, player, matchID); err != nil {
		return nil, err
	}
	return m, nil
}

// EndMatch ends matchID and withdraws it from auto-match.
func (s *Service) EndMatch(ctx context.Context, matchID string) (*turnmatch.Match, error) {
	m, err := s.update(ctx, matchID, func(m *turnmatch.Match) error {
		m.End(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Withdraw(ctx, poolKey(m.Pool, m.MinPlayers, m.MaxPlayers), m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// EndTurn stores data and passes the turn on. Only the current participant
// may end a turn.
func (s *Service) EndTurn(ctx context.Context, matchID, player string, data []byte) (*turnmatch.Match, error) {
	return s.update(ctx, matchID, func(m *turnmatch.Match) error {
		return m.EndTurn(player, data, s.now())
	})
}

func (s *Service) Match(ctx context.Context, matchID string) (*turnmatch.Match, error) {
	return s.repo.LoadMatch(ctx, matchID)
}

// Matches loads every match player takes part in. Expired records are
// dropped from the player's index.
func (s *Service) Matches(ctx context.Context, player string) ([]*turnmatch.Match, error) {
	ids, err := s.repo.PlayerMatches(ctx, player)
	if err != nil {
		return nil, err
	}
	out := make([]*turnmatch.Match, 0, len(ids))
	for _, id := range ids {
		m, err := s.repo.LoadMatch(ctx, id)
		if errors.Is(err, ErrMatchNotFound) {
			_ = s.repo.Forget(ctx, player, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Service) participantMatch(ctx context.Context, matchID, player string) (*turnmatch.Match, error) {
	m, err := s.repo.LoadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.Participant(player); !ok {
		return nil, turnmatch.ErrNotParticipant
	}
	return m, nil
}

func (s *Service) update(ctx context.Context, matchID string, fn func(*turnmatch.Match) error) (*turnmatch.Match, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	m, err := s.repo.LoadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := fn(m); err != nil {
		return nil, err
	}
	if err := s.repo.SaveMatch(ctx, m, s.opts.PlayerTTL); err != nil {
		return nil, err
	}
	s.trace("updated", m)
	return m, nil
}

// trace 调试级别下输出对局全貌
func (s *Service) trace(msg string, m *turnmatch.Match) {
	if s.log.GetLevel() > log.DebugLevel {
		return
	}
	s.log.Debug(msg+"\n"+m.Dump(), "match", m.ID)
}
