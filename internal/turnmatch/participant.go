package turnmatch

import "time"

// ParticipantStatus 参与者在对局中的状态
type ParticipantStatus int

const (
	StatusUnknown ParticipantStatus = iota
	StatusInvited
	StatusDeclined
	StatusMatching
	StatusActive
	StatusDone
)

func (s ParticipantStatus) String() string {
	switch s {
	case StatusDeclined:
		return "declined"
	case StatusActive:
		return "active"
	case StatusDone:
		return "done"
	case StatusInvited:
		return "invited"
	case StatusMatching:
		return "matching"
	default:
		return "unknown status"
	}
}

// RowStatus is the status line shown next to a participant in a match list.
func (s ParticipantStatus) RowStatus() string {
	switch s {
	case StatusInvited:
		return "Invited"
	case StatusDeclined:
		return "declined your invitation"
	case StatusMatching:
		return "waiting for them to accept the invitation"
	case StatusActive:
		return "Active"
	case StatusDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Outcome 参与者的对局结果
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeQuit
	OutcomeWon
	OutcomeLost
	OutcomeTied
	OutcomeTimeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQuit:
		return "quit"
	case OutcomeWon:
		return "won"
	case OutcomeLost:
		return "lost"
	case OutcomeTied:
		return "tied"
	case OutcomeTimeExpired:
		return "timeExpired"
	default:
		return "none"
	}
}

// automatchID 空座位（等待自动匹配）的显示 ID
const automatchID = "Automatch"

type Participant struct {
	Player     string            `json:"player,omitempty"`
	Status     ParticipantStatus `json:"status"`
	Outcome    Outcome           `json:"outcome"`
	LastTurnAt time.Time         `json:"lastTurnAt,omitempty"`
}

// ID returns the player address, or "Automatch" for a seat nobody has taken yet.
func (p Participant) ID() string {
	if p.Player == "" {
		return automatchID
	}
	return p.Player
}

// LastPlayed 距离该参与者上一次行动的时长，从未行动返回 0
func (p Participant) LastPlayed(now time.Time) time.Duration {
	if p.LastTurnAt.IsZero() {
		return 0
	}
	return now.Sub(p.LastTurnAt)
}

// Open reports whether the seat is still waiting for auto-match.
func (p Participant) Open() bool {
	return p.Player == "" && p.Status == StatusMatching
}
