package turnmatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestState(t *testing.T) {
	two := func() *Match {
		m := New("m", "p", 2, 2, "0xA", t0)
		_, _ = m.Seat("0xB", t0)
		return m
	}

	m := two()
	assert.Equal(t, MyTurn, m.State("0xA"))
	assert.Equal(t, TheirTurn, m.State("0xB"))

	m = two()
	m.Participants[1].Outcome = OutcomeWon
	assert.Equal(t, Complete, m.State("0xA"), "open match with a winner is over")

	m = two()
	m.Participants[0].Outcome = OutcomeTied
	m.Participants[1].Outcome = OutcomeTied
	assert.Equal(t, Complete, m.State("0xA"))

	m = two()
	m.Participants[0].Outcome = OutcomeTied
	assert.Equal(t, MyTurn, m.State("0xA"))

	// 仍在匹配中的对局不按胜负判定
	m = New("m", "p", 2, 3, "0xA", t0)
	m.Participants[0].Outcome = OutcomeWon
	assert.Equal(t, MyTurn, m.State("0xA"))
}

func TestOrganize(t *testing.T) {
	now := t0.Add(time.Hour)

	mine := New("mine", "p", 2, 2, "0xA", t0)
	_, _ = mine.Seat("0xB", t0)

	stale := New("stale", "p", 2, 2, "0xB", t0)
	_, _ = stale.Seat("0xA", t0)

	fresh := New("fresh", "p", 2, 2, "0xB", t0)
	_, _ = fresh.Seat("0xA", t0)
	fresh.Participants[0].LastTurnAt = t0.Add(50 * time.Minute)

	done := New("done", "p", 2, 2, "0xA", t0)
	done.End(t0)

	b := Organize([]*Match{fresh, mine, stale, done}, "0xA", now)

	assert.Len(t, b[MyTurn], 1)
	assert.Equal(t, "mine", b[MyTurn][0].ID)
	assert.Equal(t, []string{"stale", "fresh"}, []string{b[TheirTurn][0].ID, b[TheirTurn][1].ID})
	assert.Len(t, b[Complete], 1)

	assert.Equal(t, []string{"0xA", "0xB"}, Players([]*Match{fresh, mine, done}))
}

func TestFormatSince(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "now"},
		{30 * time.Second, "now"},
		{time.Minute, "about 1 minute ago"},
		{42 * time.Minute, "42 minutes ago"},
		{time.Hour, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{25 * time.Hour, "about a day ago"},
		{3 * 24 * time.Hour, "more than 3 days ago"},
		{15 * 24 * time.Hour, "more than two weeks"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatSince(c.d), c.d.String())
	}
}
