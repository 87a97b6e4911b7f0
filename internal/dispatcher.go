package internal

import (
	"fmt"
	"log/slog"

	apperrors "github.com/hanbo386/number-maze/pkg/errors"
)

// Session 一個連線的房間綁定
//
// 每條連線一個 Session，只由該連線的讀取 goroutine 使用。
type Session struct {
	out      Mailbox
	playerID string
	roomCode string
}

// NewSession 創建尚未綁定房間的 Session
func NewSession(out Mailbox) *Session {
	return &Session{out: out}
}

// PlayerID 綁定的玩家 ID（未綁定時為空）
func (s *Session) PlayerID() string { return s.playerID }

// RoomCode 綁定的房間代碼（未綁定時為空）
func (s *Session) RoomCode() string { return s.roomCode }

func (s *Session) bound() bool { return s.roomCode != "" }

func (s *Session) bind(code, playerID string) {
	s.roomCode = code
	s.playerID = playerID
}

// Dispatcher 把客戶端訊息分派到 Registry / Room
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher 創建分派器
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// HandleFrame 解析並處理一個文字訊息，錯誤只回報給發送者
func (d *Dispatcher) HandleFrame(s *Session, data []byte) {
	msg, err := DecodeClientMessage(data)
	if err == nil {
		err = d.Dispatch(s, msg)
	}
	if err != nil {
		d.reportError(s, err)
	}
}

// Dispatch 處理一則已解析的客戶端訊息
func (d *Dispatcher) Dispatch(s *Session, msg ClientMessage) error {
	switch m := msg.(type) {
	case CreateRoomRequest:
		if s.bound() {
			return apperrors.ErrInvalidState.WithDetails("already in room " + s.roomCode)
		}
		code, playerID, err := d.registry.CreateRoom(m.PlayerName, s.out)
		if err != nil {
			return err
		}
		s.bind(code, playerID)
		return nil

	case JoinRoomRequest:
		if s.bound() {
			return apperrors.ErrInvalidState.WithDetails("already in room " + s.roomCode)
		}
		room, playerID, err := d.registry.Join(m.RoomCode, m.PlayerName, s.out)
		if err != nil {
			return err
		}
		s.bind(room.Code(), playerID)
		return nil

	case SetReadyRequest:
		room, err := d.boundRoom(s, m)
		if err != nil {
			return err
		}
		return room.SetReady(s.playerID, m.Ready)

	case StartGameRequest:
		room, err := d.boundRoom(s, m)
		if err != nil {
			return err
		}
		return room.StartGame(s.playerID)

	case SubmitScoreRequest:
		room, err := d.boundRoom(s, m)
		if err != nil {
			return err
		}
		return room.SubmitScore(s.playerID, m.Score)

	default:
		return apperrors.ErrMalformedMessage.WithDetails(fmt.Sprintf("unsupported message %T", msg))
	}
}

// boundRoom 訊息指定的房間必須是 Session 綁定的房間
func (d *Dispatcher) boundRoom(s *Session, msg RoomScoped) (*Room, error) {
	if !s.bound() || msg.TargetRoom() != s.roomCode {
		return nil, apperrors.ErrForbidden
	}
	return d.registry.Get(s.roomCode)
}

// Disconnect 連線關閉：移除玩家，房間空了就回收
func (d *Dispatcher) Disconnect(s *Session) {
	if !s.bound() {
		return
	}

	code, playerID := s.roomCode, s.playerID
	s.bind("", "")

	if room, err := d.registry.Get(code); err == nil {
		room.RemovePlayer(playerID)
	}
	d.registry.RemoveIfEmpty(code)
}

func (d *Dispatcher) reportError(s *Session, err error) {
	if apperrors.CodeOf(err) == apperrors.ErrCodeInternal {
		d.logger.Error("處理訊息失敗",
			"room_code", s.roomCode,
			"player_id", s.playerID,
			"error", err)
	} else {
		d.logger.Debug("拒絕客戶端訊息",
			"room_code", s.roomCode,
			"player_id", s.playerID,
			"code", apperrors.CodeOf(err),
			"error", err)
	}

	if s.out != nil {
		s.out.Send(encodeMessage(NewErrorMessage(err)))
	}
}
