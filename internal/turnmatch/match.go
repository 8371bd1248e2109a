package turnmatch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotParticipant  = errors.New("player is not a participant")
	ErrAlreadySeated   = errors.New("player already seated in match")
	ErrNoOpenSeat      = errors.New("no open seat in match")
	ErrMatchEnded      = errors.New("match has ended")
	ErrNotYourTurn     = errors.New("not the current participant")
	ErrTooManyPlayers  = errors.New("match is at max players")
	ErrNoNextCandidate = errors.New("no participant can take the next turn")
)

// MatchStatus 对局整体状态
type MatchStatus int

const (
	MatchUnknown MatchStatus = iota
	MatchOpen
	MatchEnded
	MatchMatching
)

func (s MatchStatus) String() string {
	switch s {
	case MatchOpen:
		return "Open"
	case MatchEnded:
		return "Ended"
	case MatchMatching:
		return "Matching"
	default:
		return "Unknown - match state"
	}
}

// Match is a turn-based match. Seats beyond the creator start out as open
// auto-match slots and are filled as other players join.
type Match struct {
	ID           string        `json:"id"`
	Pool         string        `json:"pool"`
	MinPlayers   int           `json:"minPlayers"`
	MaxPlayers   int           `json:"maxPlayers"`
	Status       MatchStatus   `json:"status"`
	Participants []Participant `json:"participants"`
	// Current 当前行动者下标，-1 表示无
	Current   int       `json:"current"`
	Data      []byte    `json:"data,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a match with creator in the first seat holding the turn and
// maxPlayers-1 open seats.
func New(id, pool string, minPlayers, maxPlayers int, creator string, now time.Time) *Match {
	ps := make([]Participant, maxPlayers)
	ps[0] = Participant{Player: creator, Status: StatusActive}
	for i := 1; i < maxPlayers; i++ {
		ps[i] = Participant{Status: StatusMatching}
	}
	return &Match{
		ID:           id,
		Pool:         pool,
		MinPlayers:   minPlayers,
		MaxPlayers:   maxPlayers,
		Status:       MatchMatching,
		Participants: ps,
		Current:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (m *Match) CurrentParticipant() *Participant {
	if m.Current < 0 || m.Current >= len(m.Participants) {
		return nil
	}
	return &m.Participants[m.Current]
}

// NextParticipant 下一个行动者（按座位顺序循环）
func (m *Match) NextParticipant() *Participant {
	if m.CurrentParticipant() == nil || len(m.Participants) == 0 {
		return nil
	}
	return &m.Participants[(m.Current+1)%len(m.Participants)]
}

func (m *Match) indexOf(player string) int {
	for i, p := range m.Participants {
		if p.Player != "" && strings.EqualFold(p.Player, player) {
			return i
		}
	}
	return -1
}

// Participant returns the seat held by player.
func (m *Match) Participant(player string) (*Participant, bool) {
	i := m.indexOf(player)
	if i < 0 {
		return nil, false
	}
	return &m.Participants[i], true
}

func (m *Match) Players() []string {
	out := make([]string, 0, len(m.Participants))
	for _, p := range m.Participants {
		if p.Player != "" {
			out = append(out, p.Player)
		}
	}
	return out
}

func (m *Match) OpenSlots() int {
	n := 0
	for _, p := range m.Participants {
		if p.Open() {
			n++
		}
	}
	return n
}

// Seat puts player into the first open seat.
func (m *Match) Seat(player string, now time.Time) (*Participant, error) {
	if m.Status == MatchEnded {
		return nil, ErrMatchEnded
	}
	if m.indexOf(player) >= 0 {
		return nil, ErrAlreadySeated
	}
	for i := range m.Participants {
		if m.Participants[i].Open() {
			m.Participants[i].Player = player
			m.Participants[i].Status = StatusActive
			m.refreshStatus()
			m.UpdatedAt = now
			return &m.Participants[i], nil
		}
	}
	return nil, ErrNoOpenSeat
}

// AddSlots appends n open seats, bounded by MaxPlayers.
func (m *Match) AddSlots(n int, now time.Time) error {
	if m.Status == MatchEnded {
		return ErrMatchEnded
	}
	if n <= 0 {
		return nil
	}
	if len(m.Participants)+n > m.MaxPlayers {
		// 已出局的座位可以复用
		reusable := 0
		for _, p := range m.Participants {
			if p.Outcome == OutcomeQuit {
				reusable++
			}
		}
		if len(m.Participants)-reusable+n > m.MaxPlayers {
			return ErrTooManyPlayers
		}
		m.compact()
		if len(m.Participants)+n > m.MaxPlayers {
			return ErrTooManyPlayers
		}
	}
	for i := 0; i < n; i++ {
		m.Participants = append(m.Participants, Participant{Status: StatusMatching})
	}
	m.refreshStatus()
	m.UpdatedAt = now
	return nil
}

// Quit marks player as having quit. The turn moves on if they held it.
func (m *Match) Quit(player string, now time.Time) (*Participant, error) {
	i := m.indexOf(player)
	if i < 0 {
		return nil, ErrNotParticipant
	}
	p := &m.Participants[i]
	p.Outcome = OutcomeQuit
	p.Status = StatusDone
	p.LastTurnAt = now
	if m.Current == i {
		m.advance()
	}
	m.UpdatedAt = now
	return p, nil
}

// Remove drops player's seat entirely.
func (m *Match) Remove(player string, now time.Time) error {
	i := m.indexOf(player)
	if i < 0 {
		return ErrNotParticipant
	}
	cur := m.CurrentParticipant()
	var curPlayer string
	if cur != nil {
		curPlayer = cur.Player
	}
	m.Participants = append(m.Participants[:i], m.Participants[i+1:]...)
	m.Current = -1
	if curPlayer != "" {
		m.Current = m.indexOf(curPlayer)
	}
	if m.Current < 0 {
		m.advanceFrom(i - 1)
	}
	m.UpdatedAt = now
	return nil
}

// Remaining counts seated participants that have not quit.
func (m *Match) Remaining() int {
	n := 0
	for _, p := range m.Participants {
		if p.Player != "" && p.Outcome != OutcomeQuit {
			n++
		}
	}
	return n
}

func (m *Match) End(now time.Time) {
	m.Status = MatchEnded
	m.Current = -1
	for i := range m.Participants {
		if m.Participants[i].Player != "" {
			m.Participants[i].Status = StatusDone
		}
	}
	m.UpdatedAt = now
}

// EndTurn stores data and hands the turn to the next participant that can
// still play.
func (m *Match) EndTurn(player string, data []byte, now time.Time) error {
	if m.Status == MatchEnded {
		return ErrMatchEnded
	}
	cur := m.CurrentParticipant()
	if cur == nil || !strings.EqualFold(cur.Player, player) {
		return ErrNotYourTurn
	}
	cur.LastTurnAt = now
	m.Data = data
	m.UpdatedAt = now
	if !m.advance() {
		return ErrNoNextCandidate
	}
	return nil
}

// advance moves Current to the next seat that has not finished. Open
// auto-match seats can hold the turn.
func (m *Match) advance() bool {
	return m.advanceFrom(m.Current)
}

func (m *Match) advanceFrom(from int) bool {
	n := len(m.Participants)
	if n == 0 {
		m.Current = -1
		return false
	}
	for step := 1; step <= n; step++ {
		i := ((from+step)%n + n) % n
		if m.Participants[i].Outcome == OutcomeNone && m.Participants[i].Status != StatusDone {
			m.Current = i
			return true
		}
	}
	m.Current = -1
	return false
}

func (m *Match) compact() {
	kept := make([]Participant, 0, len(m.Participants))
	current := -1
	for i, p := range m.Participants {
		if p.Outcome == OutcomeQuit {
			continue
		}
		if i == m.Current {
			current = len(kept)
		}
		kept = append(kept, p)
	}
	m.Participants = kept
	m.Current = current
	if m.Current < 0 {
		m.advanceFrom(-1)
	}
}

func (m *Match) refreshStatus() {
	if m.Status == MatchEnded {
		return
	}
	if m.OpenSlots() > 0 {
		m.Status = MatchMatching
		return
	}
	m.Status = MatchOpen
}

// SinceLastTurn 距离最近一次任意参与者行动的时长；无人行动时以创建时间计
func (m *Match) SinceLastTurn(now time.Time) time.Duration {
	last := m.CreatedAt
	for _, p := range m.Participants {
		if p.LastTurnAt.After(last) {
			last = p.LastTurnAt
		}
	}
	return now.Sub(last)
}

// Dump renders the match for debug logs.
func (m *Match) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is %s\n", m.ID, m.Status)
	for _, p := range m.Participants {
		if p.Player != "" {
			fmt.Fprintf(&b, "\t%s:%s - %s\n", p.Player, p.Status, p.Status.RowStatus())
		} else {
			fmt.Fprintf(&b, "\tAUTOMATCH\t:%s - %s\n", p.Status, p.Status.RowStatus())
		}
	}
	return b.String()
}
