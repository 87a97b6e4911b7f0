// Package events 將房間生命週期事件發布到外部訊息系統
//
// 房間伺服器本身不依賴這些事件；訂閱方（統計、排行榜、監控）自行消費。
// 發布一律經過 AsyncPublisher，不阻塞房間的狀態轉換。
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type 事件類型
type Type string

const (
	TypeRoomCreated Type = "room.created"
	TypeGameStarted Type = "game.started"
	TypeGameEnded   Type = "game.ended"
	TypeRoomClosed  Type = "room.closed"
)

// Event 房間事件
type Event struct {
	Type       Type      `json:"type"`
	RoomCode   string    `json:"roomCode"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload,omitempty"`
}

// New 創建事件，時間取當下
func New(t Type, roomCode string, payload any) Event {
	return Event{
		Type:       t,
		RoomCode:   roomCode,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Subject 事件的 subject / channel 名稱：<prefix>.<type>
func Subject(prefix string, t Type) string {
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

// Publisher 事件發布者
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher 丟棄所有事件（events.driver = none）
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

func encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
