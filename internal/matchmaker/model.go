package matchmaker

import (
	"fmt"

	"TurnMatch/internal/turnmatch"
)

// Ticket 一次匹配请求：玩家 + 人数区间
type Ticket struct {
	Player     string `json:"player"`
	Pool       string `json:"pool"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
}

// Sheet is the matchmaking UI the service builds for a ticket. Presenting it
// shows the player's live matches next to the auto-match option.
type Sheet struct {
	ID         string             `json:"id"`
	Player     string             `json:"player"`
	Pool       string             `json:"pool"`
	MinPlayers int                `json:"minPlayers"`
	MaxPlayers int                `json:"maxPlayers"`
	Matches    []*turnmatch.Match `json:"matches"`
}

type ActionKind string

const (
	ActionPlay        ActionKind = "play"
	ActionCancel      ActionKind = "cancel"
	ActionQuit        ActionKind = "quit"
	ActionFindPlayers ActionKind = "find_players"
)

// Action 用户在匹配界面上的操作
type Action struct {
	Kind    ActionKind `json:"kind"`
	MatchID string     `json:"matchId,omitempty"`
}

type EventKind int

const (
	MatchFound EventKind = iota + 1
	Canceled
	Failed
	PlayerQuit
	FindPlayersRequested
)

func (k EventKind) String() string {
	switch k {
	case MatchFound:
		return "match_found"
	case Canceled:
		return "canceled"
	case Failed:
		return "failed"
	case PlayerQuit:
		return "player_quit"
	case FindPlayersRequested:
		return "find_players"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a matchmaking lifecycle callback. Which fields are set depends on
// Kind: Match for MatchFound, PlayerQuit and FindPlayersRequested,
// Participant for PlayerQuit, Err for Failed.
type Event struct {
	Kind        EventKind
	SheetID     string
	Match       *turnmatch.Match
	Participant *turnmatch.Participant
	Err         error
}

// Delegate receives the events of one sheet.
type Delegate func(Event)

// StartRequest POST /match/start
type StartRequest struct {
	MinPlayers int    `json:"minPlayers" binding:"required"`
	MaxPlayers int    `json:"maxPlayers" binding:"required"`
	Pool       string `json:"pool"`
}

// MatchListResponse GET /match/list
type MatchListResponse struct {
	MyTurn    []MatchSummary `json:"myTurn"`
	TheirTurn []MatchSummary `json:"theirTurn"`
	Complete  []MatchSummary `json:"matchComplete"`
	// Players 所有对局中出现过的玩家（含自己），客户端据此批量加载头像
	Players []string `json:"players"`
}

type MatchSummary struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Players       []string `json:"players"`
	OpenSlots     int      `json:"openSlots"`
	LastTurn      string   `json:"lastTurn"`
	CurrentPlayer string   `json:"currentPlayer,omitempty"`

	Participants []ParticipantRow `json:"participants"`
}

// ParticipantRow 对局详情中的一行
type ParticipantRow struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Outcome    string `json:"outcome"`
	LastPlayed string `json:"lastPlayed,omitempty"`
}
