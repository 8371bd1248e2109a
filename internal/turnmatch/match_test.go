package turnmatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 2, 15, 12, 0, 0, 0, time.UTC)

func TestNewMatch_SeatsCreatorAndOpenSlots(t *testing.T) {
	m := New("m1", "default", 2, 4, "0xA", t0)

	assert.Equal(t, 4, len(m.Participants))
	assert.Equal(t, 3, m.OpenSlots())
	assert.Equal(t, MatchMatching, m.Status)
	assert.True(t, m.OurTurn("0xA"))
	assert.Equal(t, "Automatch", m.Participants[1].ID())
	assert.Equal(t, []string{"0xA"}, m.Players())
}

func TestSeat_FillsUntilOpen(t *testing.T) {
	m := New("m1", "default", 2, 3, "0xA", t0)

	_, err := m.Seat("0xB", t0)
	require.NoError(t, err)
	assert.Equal(t, MatchMatching, m.Status)

	_, err = m.Seat("0xb", t0)
	assert.ErrorIs(t, err, ErrAlreadySeated)

	_, err = m.Seat("0xC", t0)
	require.NoError(t, err)
	assert.Equal(t, MatchOpen, m.Status)

	_, err = m.Seat("0xD", t0)
	assert.ErrorIs(t, err, ErrNoOpenSeat)
}

func TestEndTurn_PassesToNext(t *testing.T) {
	m := New("m1", "default", 2, 2, "0xA", t0)
	_, _ = m.Seat("0xB", t0)

	assert.ErrorIs(t, m.EndTurn("0xB", nil, t0), ErrNotYourTurn)

	later := t0.Add(time.Minute)
	require.NoError(t, m.EndTurn("0xA", []byte("move-1"), later))
	assert.True(t, m.OurTurn("0xB"))
	assert.Equal(t, []byte("move-1"), m.Data)
	assert.Equal(t, later, m.Participants[0].LastTurnAt)

	require.NoError(t, m.EndTurn("0xB", []byte("move-2"), later))
	assert.True(t, m.OurTurn("0xA"), "turn wraps around")
}

func TestLastPlayed(t *testing.T) {
	m := New("m1", "default", 2, 2, "0xA", t0)
	_, _ = m.Seat("0xB", t0)
	require.NoError(t, m.EndTurn("0xA", nil, t0.Add(time.Minute)))

	now := t0.Add(time.Hour)
	assert.Equal(t, 59*time.Minute, m.Participants[0].LastPlayed(now))
	assert.Zero(t, m.Participants[1].LastPlayed(now), "0xB never played")
}

func TestQuit_MovesTurnAndCompletes(t *testing.T) {
	m := New("m1", "default", 2, 3, "0xA", t0)
	_, _ = m.Seat("0xB", t0)
	_, _ = m.Seat("0xC", t0)

	p, err := m.Quit("0xA", t0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuit, p.Outcome)
	assert.Equal(t, StatusDone, p.Status)
	assert.True(t, m.OurTurn("0xB"))
	assert.Equal(t, 2, m.Remaining())
	assert.Equal(t, Complete, m.State("0xB"))

	_, err = m.Quit("0xZ", t0)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestRemove_KeepsCurrent(t *testing.T) {
	m := New("m1", "default", 2, 3, "0xA", t0)
	_, _ = m.Seat("0xB", t0)
	_, _ = m.Seat("0xC", t0)
	require.NoError(t, m.EndTurn("0xA", nil, t0))

	require.NoError(t, m.Remove("0xA", t0))
	assert.Equal(t, []string{"0xB", "0xC"}, m.Players())
	assert.True(t, m.OurTurn("0xB"))

	require.NoError(t, m.Remove("0xB", t0))
	assert.True(t, m.OurTurn("0xC"), "removing the current player hands the turn on")
}

func TestAddSlots_BoundedByMax(t *testing.T) {
	m := New("m1", "default", 2, 3, "0xA", t0)
	_, _ = m.Seat("0xB", t0)
	_, _ = m.Seat("0xC", t0)

	assert.ErrorIs(t, m.AddSlots(1, t0), ErrTooManyPlayers)

	_, _ = m.Quit("0xC", t0)
	require.NoError(t, m.AddSlots(1, t0))
	assert.Equal(t, 3, len(m.Participants))
	assert.Equal(t, 1, m.OpenSlots())
	assert.Equal(t, MatchMatching, m.Status)
}

func TestEnd(t *testing.T) {
	m := New("m1", "default", 2, 2, "0xA", t0)
	m.End(t0)

	assert.Equal(t, Complete, m.State("0xA"))
	assert.Nil(t, m.CurrentParticipant())
	assert.ErrorIs(t, m.EndTurn("0xA", nil, t0), ErrMatchEnded)
	_, err := m.Seat("0xB", t0)
	assert.ErrorIs(t, err, ErrMatchEnded)
}

func TestNextParticipant(t *testing.T) {
	m := New("m1", "default", 2, 3, "0xA", t0)
	next := m.NextParticipant()
	require.NotNil(t, next)
	assert.Equal(t, "Automatch", next.ID())

	m.Current = 2
	assert.Same(t, &m.Participants[0], m.NextParticipant())
}

func TestDump(t *testing.T) {
	m := New("m1", "default", 2, 2, "0xA", t0)
	out := m.Dump()
	assert.Contains(t, out, "m1 is Matching")
	assert.Contains(t, out, "0xA:active - Active")
	assert.Contains(t, out, "AUTOMATCH\t:matching - waiting for them to accept the invitation")
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "unknown status", StatusUnknown.String())
	assert.Equal(t, "declined your invitation", StatusDeclined.RowStatus())
	assert.Equal(t, "Unknown - match state", MatchUnknown.String())
	assert.Equal(t, "quit", OutcomeQuit.String())
}
