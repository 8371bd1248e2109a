package turnmatch

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// State 从本地玩家视角看对局所处阶段
type State int

const (
	MyTurn State = iota
	TheirTurn
	Complete
)

func (s State) String() string {
	switch s {
	case MyTurn:
		return "myTurn"
	case TheirTurn:
		return "theirTurn"
	default:
		return "matchComplete"
	}
}

// State classifies the match from local's point of view. A match whose
// status is still open can already be over: a quit, a win/loss or two ties
// all count as complete.
func (m *Match) State(local string) State {
	if m.Status == MatchEnded {
		return Complete
	}

	someoneEnded := false
	tied := 0
	for _, p := range m.Participants {
		switch p.Outcome {
		case OutcomeQuit:
			return Complete
		case OutcomeTied:
			tied++
		case OutcomeWon, OutcomeLost:
			someoneEnded = true
		}
	}

	if m.Status == MatchOpen {
		if someoneEnded || tied == 2 {
			return Complete
		}
	}

	if m.OurTurn(local) {
		return MyTurn
	}
	return TheirTurn
}

// OurTurn reports whether local holds the turn.
func (m *Match) OurTurn(local string) bool {
	cur := m.CurrentParticipant()
	return cur != nil && cur.Player != "" && strings.EqualFold(cur.Player, local)
}

// Buckets 按状态分组的对局列表
type Buckets map[State][]*Match

// Organize groups matches by State for local. Each bucket is sorted with the
// match that waited longest since its last turn first.
func Organize(matches []*Match, local string, now time.Time) Buckets {
	b := Buckets{
		MyTurn:    {},
		TheirTurn: {},
		Complete:  {},
	}
	for _, m := range matches {
		s := m.State(local)
		b[s] = append(b[s], m)
	}
	for _, list := range b {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].SinceLastTurn(now) > list[j].SinceLastTurn(now)
		})
	}
	return b
}

// Players returns every distinct player across matches, sorted.
func Players(matches []*Match) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, m := range matches {
		for _, p := range m.Players() {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// FormatSince renders d the way the match list shows turn age.
func FormatSince(d time.Duration) string {
	secs := int(d / time.Second)
	minutes := (secs / 60) % 60
	hours := secs / 3600

	if secs == 0 {
		return "now"
	}
	if hours == 0 {
		switch {
		case minutes < 1:
			return "now"
		case minutes == 1:
			return "about 1 minute ago"
		default:
			return fmt.Sprintf("%d minutes ago", minutes)
		}
	}
	if hours < 24 {
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	if hours >= 24*14 {
		return "more than two weeks"
	}
	days := hours / 24
	if days == 1 {
		return "about a day ago"
	}
	return fmt.Sprintf("more than %d days ago", days)
}
