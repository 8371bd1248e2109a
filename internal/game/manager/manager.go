package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"TurnMatch/internal/launcher"
	"TurnMatch/internal/matchmaker"
	"TurnMatch/internal/turnmatch"
	"TurnMatch/internal/utils"
	"TurnMatch/internal/websocket"

	"github.com/charmbracelet/log"
)

// 客户端发来的事件
const (
	EventStart       = "matchmaker.start"
	EventPlay        = "matchmaker.play"
	EventCancel      = "matchmaker.cancel"
	EventQuit        = "matchmaker.quit"
	EventFindPlayers = "matchmaker.find_players"
	EventEndTurn     = "turn.end"
)

// 推送给客户端的事件
const (
	EventMatchFound   = "match.found"
	EventPlayerJoined = "match.player_joined"
	EventPlayerLeft   = "match.player_left"
	EventMatchEnded   = "match.ended"
	EventSlotsAdded   = "match.slots_added"
	EventTurnEnded    = "turn.ended"
	EventCanceled     = "matchmaker.canceled"
	EventFailed       = "matchmaker.failed"
	EventError        = "error"
)

const requestTimeout = 5 * time.Second

var (
	ErrNoSession    = errors.New("no matchmaking in progress")
	ErrSheetMissing = errors.New("sheet is not the one presented")
	ErrBadPayload   = errors.New("malformed payload")
)

// GameManager 为每个在线玩家持有一个 launcher，并处理匹配结果
type GameManager struct {
	mu        sync.RWMutex
	launchers map[string]*launcher.Launcher // player address → launcher
	svc       *matchmaker.Service
	hub       websocket.HubInterface
	log       *log.Logger
}

func NewGameManager(hub websocket.HubInterface, svc *matchmaker.Service) *GameManager {
	return &GameManager{
		launchers: make(map[string]*launcher.Launcher),
		svc:       svc,
		hub:       hub,
		log:       utils.Named("manager"),
	}
}

type sheetPayload struct {
	SheetID string `json:"sheetId"`
	MatchID string `json:"matchId"`
}

type turnPayload struct {
	MatchID string          `json:"matchId"`
	Data    json.RawMessage `json:"data"`
}

type matchPayload struct {
	Player string           `json:"player"`
	Match  *turnmatch.Match `json:"match"`
}

type errorPayload struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

func (m *GameManager) launcherFor(addr string) *launcher.Launcher {
	m.mu.RLock()
	l, ok := m.launchers[addr]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.launchers[addr]; ok {
		return l
	}
	l = launcher.New(addr, m.svc, m.observer(addr), m.log.WithPrefix("launcher"))
	m.launchers[addr] = l
	return l
}

// Start 为 addr 发起一次匹配，结果通过 websocket 推送
func (m *GameManager) Start(ctx context.Context, addr string, req matchmaker.StartRequest) *launcher.Launcher {
	l := m.launcherFor(addr)
	l.Start(ctx, launcher.Request{
		MinPlayers: req.MinPlayers,
		MaxPlayers: req.MaxPlayers,
		Pool:       req.Pool,
		Host:       m.hub.Screen(addr),
	})
	return l
}

// Disconnect 玩家掉线：取消进行中的匹配
func (m *GameManager) Disconnect(addr string) {
	// 已经重连的不处理
	if _, ok := m.hub.ClientByAddress(addr); ok {
		return
	}
	m.drop(addr, "player disconnected")
}

// Replaced 玩家的新连接顶替了旧连接。旧连接上展示的界面随之消失，
// 会话就此取消，新连接可以重新发起匹配。由 Hub.OnReplace 调用。
func (m *GameManager) Replaced(addr string) {
	m.drop(addr, "connection replaced")
}

func (m *GameManager) drop(addr, reason string) {
	m.mu.Lock()
	l, ok := m.launchers[addr]
	delete(m.launchers, addr)
	m.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	l.Close(ctx)
	m.log.Info(reason, "address", addr)
}

// HandlePlayerMessage 统一入口（来自 Hub.OnIncoming）
func (m *GameManager) HandlePlayerMessage(msg websocket.IncomingMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := m.handle(ctx, msg); err != nil {
		m.log.Warn("player message rejected", "from", msg.From, "event", msg.Event, "err", err)
		m.hub.SendToPlayer(msg.From, websocket.OutgoingMessage{
			Event: EventError,
			Data:  errorPayload{Event: msg.Event, Error: err.Error()},
		})
	}
}

func (m *GameManager) handle(ctx context.Context, msg websocket.IncomingMessage) error {
	switch msg.Event {
	case EventStart:
		var req matchmaker.StartRequest
		if err := decode(msg.Data, &req); err != nil {
			return err
		}
		m.Start(ctx, msg.From, req)
		return nil

	case EventPlay:
		return m.act(ctx, msg, matchmaker.ActionPlay)
	case EventCancel:
		return m.act(ctx, msg, matchmaker.ActionCancel)
	case EventQuit:
		return m.act(ctx, msg, matchmaker.ActionQuit)
	case EventFindPlayers:
		return m.act(ctx, msg, matchmaker.ActionFindPlayers)

	case EventEndTurn:
		var p turnPayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		match, err := m.svc.EndTurn(ctx, p.MatchID, msg.From, p.Data)
		if err != nil {
			return err
		}
		m.hub.BroadcastToPlayers(match.Players(), websocket.OutgoingMessage{
			Event: EventTurnEnded,
			Data:  matchPayload{Player: msg.From, Match: match},
		})
		return nil

	default:
		return fmt.Errorf("unknown event %q", msg.Event)
	}
}

// act 把界面上的操作交给平台；只能操作自己当前展示的界面
func (m *GameManager) act(ctx context.Context, msg websocket.IncomingMessage, kind matchmaker.ActionKind) error {
	var p sheetPayload
	if err := decode(msg.Data, &p); err != nil {
		return err
	}

	m.mu.RLock()
	l, ok := m.launchers[msg.From]
	m.mu.RUnlock()
	if !ok || l.State() != launcher.Presenting {
		return ErrNoSession
	}
	id := l.SheetID()
	if p.SheetID != "" && p.SheetID != id {
		return ErrSheetMissing
	}
	return m.svc.HandleAction(ctx, id, matchmaker.Action{Kind: kind, MatchID: p.MatchID})
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// observer 处理 addr 的匹配结果
func (m *GameManager) observer(addr string) launcher.Observer {
	return func(ev launcher.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		switch ev.Kind {
		case matchmaker.MatchFound:
			m.matchFound(addr, ev.Match)
		case matchmaker.PlayerQuit:
			m.playerQuit(ctx, addr, ev.Match)
		case matchmaker.FindPlayersRequested:
			m.findPlayers(ctx, addr, ev.Match)
		case matchmaker.Canceled:
			m.hub.SendToPlayer(addr, websocket.OutgoingMessage{Event: EventCanceled})
		case matchmaker.Failed:
			m.failed(addr, ev.Err)
		}
	}
}

func (m *GameManager) matchFound(addr string, match *turnmatch.Match) {
	m.log.Info("match found", "address", addr, "match", match.ID, "players", len(match.Players()))
	payload := matchPayload{Player: addr, Match: match}
	m.hub.SendToPlayer(addr, websocket.OutgoingMessage{Event: EventMatchFound, Data: payload})
	if others := without(match.Players(), addr); len(others) > 0 {
		m.hub.BroadcastToPlayers(others, websocket.OutgoingMessage{Event: EventPlayerJoined, Data: payload})
	}
}

// playerQuit 人数不足时结束对局，否则移除退出者
func (m *GameManager) playerQuit(ctx context.Context, addr string, match *turnmatch.Match) {
	var (
		updated *turnmatch.Match
		event   string
		err     error
	)
	if match.Remaining() < match.MinPlayers {
		updated, err = m.svc.EndMatch(ctx, match.ID)
		event = EventMatchEnded
	} else {
		updated, err = m.svc.Remove(ctx, match.ID, addr)
		event = EventPlayerLeft
	}
	if err != nil {
		m.failed(addr, err)
		return
	}

	m.log.Info("player quit", "address", addr, "match", match.ID, "event", event)
	payload := matchPayload{Player: addr, Match: updated}
	m.hub.BroadcastToPlayers(append(without(updated.Players(), addr), addr), websocket.OutgoingMessage{Event: event, Data: payload})
}

func (m *GameManager) findPlayers(ctx context.Context, addr string, match *turnmatch.Match) {
	updated, err := m.svc.AddSlots(ctx, match.ID, 1)
	if err != nil {
		m.failed(addr, err)
		return
	}
	m.hub.SendToPlayer(addr, websocket.OutgoingMessage{
		Event: EventSlotsAdded,
		Data:  matchPayload{Player: addr, Match: updated},
	})
}

func (m *GameManager) failed(addr string, err error) {
	m.log.Warn("matchmaking failed", "address", addr, "err", err)
	m.hub.SendToPlayer(addr, websocket.OutgoingMessage{
		Event: EventFailed,
		Data:  errorPayload{Error: err.Error()},
	})
}

func without(players []string, addr string) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		if p != addr {
			out = append(out, p)
		}
	}
	return out
}
