package websocket

import "encoding/json"

// 推送给客户端的事件名
const (
	EventPresent = "matchmaker.present"
	EventDismiss = "matchmaker.dismiss"
)

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type IncomingMessage struct {
	From  string          `json:"from"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
