package matchmaker

import (
	"errors"
	"net/http"
	"time"

	"TurnMatch/internal/turnmatch"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GET /match/list  按 我的回合 / 对方回合 / 已结束 分组
func (h *Handler) List(c *gin.Context) {
	addr := c.GetString("address")
	matches, err := h.svc.Matches(c.Request.Context(), addr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	now := h.svc.now()
	b := turnmatch.Organize(matches, addr, now)
	c.JSON(http.StatusOK, MatchListResponse{
		MyTurn:    summarize(b[turnmatch.MyTurn], now),
		TheirTurn: summarize(b[turnmatch.TheirTurn], now),
		Complete:  summarize(b[turnmatch.Complete], now),
		Players:   turnmatch.Players(matches),
	})
}

// GET /match/:id
func (h *Handler) Get(c *gin.Context) {
	m, err := h.svc.Match(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrMatchNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if _, ok := m.Participant(c.GetString("address")); !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": turnmatch.ErrNotParticipant.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

func summarize(matches []*turnmatch.Match, now time.Time) []MatchSummary {
	out := make([]MatchSummary, 0, len(matches))
	for _, m := range matches {
		s := MatchSummary{
			ID:        m.ID,
			Status:    m.Status.String(),
			Players:   m.Players(),
			OpenSlots: m.OpenSlots(),
			LastTurn:  turnmatch.FormatSince(m.SinceLastTurn(now)),
		}
		if cur := m.CurrentParticipant(); cur != nil {
			s.CurrentPlayer = cur.ID()
		}
		for _, p := range m.Participants {
			row := ParticipantRow{
				ID:      p.ID(),
				Status:  p.Status.RowStatus(),
				Outcome: p.Outcome.String(),
			}
			// 从未行动过的不显示
			if d := p.LastPlayed(now); d > 0 {
				row.LastPlayed = turnmatch.FormatSince(d)
			}
			s.Participants = append(s.Participants, row)
		}
		out = append(out, s)
	}
	return out
}
