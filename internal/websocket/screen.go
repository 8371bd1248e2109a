package websocket

import (
	"context"

	"TurnMatch/internal/launcher"
	"TurnMatch/internal/matchmaker"
)

// ScreenRef 指向某个玩家当前的连接，每次使用时重新查找，不持有 Client
type ScreenRef struct {
	hub     *Hub
	address string
}

func (h *Hub) Screen(address string) launcher.HostRef {
	return ScreenRef{hub: h, address: address}
}

func (r ScreenRef) Screen() (launcher.HostScreen, bool) {
	if r.hub == nil {
		return nil, false
	}
	c, ok := r.hub.ClientByAddress(r.address)
	if !ok {
		return nil, false
	}
	return &screen{hub: r.hub, client: c}, true
}

type screen struct {
	hub    *Hub
	client *Client
}

type dismissPayload struct {
	SheetID string `json:"sheetId"`
}

func (s *screen) Present(ctx context.Context, sheet *matchmaker.Sheet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.hub.sendTo(s.client, OutgoingMessage{Event: EventPresent, Data: sheet})
}

func (s *screen) Dismiss(ctx context.Context, sheetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.hub.sendTo(s.client, OutgoingMessage{Event: EventDismiss, Data: dismissPayload{SheetID: sheetID}})
}
