package internal

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/hanbo386/number-maze/pkg/errors"
)

// MessageType 訊息類型（JSON 中的 type 欄位）
type MessageType string

// 客戶端 → 伺服器
const (
	TypeCreateRoom  MessageType = "create_room"
	TypeJoinRoom    MessageType = "join_room"
	TypeSetReady    MessageType = "set_ready"
	TypeStartGame   MessageType = "start_game"
	TypeSubmitScore MessageType = "submit_score"
)

// 伺服器 → 客戶端
const (
	TypeRoomCreated      MessageType = "room_created"
	TypeRoomJoined       MessageType = "room_joined"
	TypePlayerListUpdate MessageType = "player_list_update"
	TypeGameStart        MessageType = "game_start"
	TypeCountdownUpdate  MessageType = "countdown_update"
	TypeScoreUpdate      MessageType = "score_update"
	TypeGameEnd          MessageType = "game_end"
	TypeHostTransferred  MessageType = "host_transferred"
	TypeError            MessageType = "error"
)

// ClientMessage 客戶端訊息（封閉集合，只有本檔定義的型別實作）
type ClientMessage interface {
	clientMessage()
}

// RoomScoped 指定了房間的客戶端訊息
type RoomScoped interface {
	ClientMessage
	TargetRoom() string
}

// CreateRoomRequest create_room
type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
}

// JoinRoomRequest join_room
type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

// SetReadyRequest set_ready
type SetReadyRequest struct {
	RoomCode string `json:"roomCode"`
	Ready    bool   `json:"ready"`
}

// StartGameRequest start_game
type StartGameRequest struct {
	RoomCode string `json:"roomCode"`
}

// SubmitScoreRequest submit_score
type SubmitScoreRequest struct {
	RoomCode string `json:"roomCode"`
	Score    int    `json:"score"`
}

func (CreateRoomRequest) clientMessage()  {}
func (JoinRoomRequest) clientMessage()    {}
func (SetReadyRequest) clientMessage()    {}
func (StartGameRequest) clientMessage()   {}
func (SubmitScoreRequest) clientMessage() {}

func (m SetReadyRequest) TargetRoom() string    { return m.RoomCode }
func (m StartGameRequest) TargetRoom() string   { return m.RoomCode }
func (m SubmitScoreRequest) TargetRoom() string { return m.RoomCode }

// DecodeClientMessage 解析客戶端訊息
//
// 先讀 type 再解到對應的具體型別，必填欄位缺漏時返回 MalformedMessage。
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformedMessage, apperrors.ErrMalformedMessage.Message)
	}

	switch envelope.Type {
	case TypeCreateRoom:
		var msg CreateRoomRequest
		if err := decodeBody(data, &msg); err != nil {
			return nil, err
		}
		return msg, nil

	case TypeJoinRoom:
		var msg JoinRoomRequest
		if err := decodeBody(data, &msg); err != nil {
			return nil, err
		}
		if msg.RoomCode == "" {
			return nil, missingField("roomCode")
		}
		return msg, nil

	case TypeSetReady:
		var msg SetReadyRequest
		if err := decodeBody(data, &msg); err != nil {
			return nil, err
		}
		if msg.RoomCode == "" {
			return nil, missingField("roomCode")
		}
		return msg, nil

	case TypeStartGame:
		var msg StartGameRequest
		if err := decodeBody(data, &msg); err != nil {
			return nil, err
		}
		if msg.RoomCode == "" {
			return nil, missingField("roomCode")
		}
		return msg, nil

	case TypeSubmitScore:
		var raw struct {
			RoomCode string `json:"roomCode"`
			Score    *int   `json:"score"`
		}
		if err := decodeBody(data, &raw); err != nil {
			return nil, err
		}
		if raw.RoomCode == "" {
			return nil, missingField("roomCode")
		}
		if raw.Score == nil {
			return nil, missingField("score")
		}
		return SubmitScoreRequest{RoomCode: raw.RoomCode, Score: *raw.Score}, nil

	case "":
		return nil, missingField("type")

	default:
		return nil, apperrors.ErrMalformedMessage.WithDetails(fmt.Sprintf("unknown message type %q", envelope.Type))
	}
}

func decodeBody(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeMalformedMessage, apperrors.ErrMalformedMessage.Message)
	}
	return nil
}

func missingField(name string) error {
	return apperrors.ErrMalformedMessage.WithDetails("missing " + name)
}

// PlayerInfo 玩家列表中的一筆
type PlayerInfo struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
	Ready    bool   `json:"ready"`
	Score    int    `json:"score"`
}

// ScoreEntry 分數表 / 排名中的一筆
type ScoreEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// RoomCreatedMessage room_created
type RoomCreatedMessage struct {
	Type     MessageType `json:"type"`
	RoomCode string      `json:"roomCode"`
	PlayerID string      `json:"playerId"`
	IsHost   bool        `json:"isHost"`
}

// RoomJoinedMessage room_joined
type RoomJoinedMessage struct {
	Type     MessageType  `json:"type"`
	RoomCode string       `json:"roomCode"`
	PlayerID string       `json:"playerId"`
	IsHost   bool         `json:"isHost"`
	Players  []PlayerInfo `json:"players"`
}

// PlayerListUpdateMessage player_list_update
type PlayerListUpdateMessage struct {
	Type    MessageType  `json:"type"`
	Players []PlayerInfo `json:"players"`
}

// GameStartMessage game_start
type GameStartMessage struct {
	Type     MessageType `json:"type"`
	GameData *GameData   `json:"gameData"`
}

// CountdownUpdateMessage countdown_update
type CountdownUpdateMessage struct {
	Type          MessageType `json:"type"`
	TimeRemaining int         `json:"timeRemaining"`
}

// ScoreUpdateMessage score_update
type ScoreUpdateMessage struct {
	Type   MessageType  `json:"type"`
	Scores []ScoreEntry `json:"scores"`
}

// GameEndMessage game_end
type GameEndMessage struct {
	Type     MessageType  `json:"type"`
	Rankings []ScoreEntry `json:"rankings"`
}

// HostTransferredMessage host_transferred
type HostTransferredMessage struct {
	Type   MessageType `json:"type"`
	IsHost bool        `json:"isHost"`
}

// ErrorMessage error
type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// NewErrorMessage 由錯誤建立 error 訊息
func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    TypeError,
		Code:    apperrors.CodeOf(err),
		Message: apperrors.MessageOf(err),
	}
}

// encodeMessage 序列化伺服器訊息
//
// 訊息都是固定結構，序列化不會失敗。
func encodeMessage(msg any) []byte {
	data, _ := json.Marshal(msg)
	return data
}
