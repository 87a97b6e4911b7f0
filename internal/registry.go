package internal

import (
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/hanbo386/number-maze/internal/events"
	apperrors "github.com/hanbo386/number-maze/pkg/errors"
)

const (
	minRoomCode  = 1000
	maxRoomCodes = 9000 // 1000-9999

	// 隨機嘗試次數上限，之後改為順序掃描
	maxCodeAttempts = 64
)

// Option Registry 選項
type Option func(*Registry)

// WithTickSource 替換倒數計時的節拍來源
func WithTickSource(src TickSource) Option {
	return func(reg *Registry) { reg.deps.ticks = src }
}

// WithPublisher 設置事件發布者
func WithPublisher(p events.Publisher) Option {
	return func(reg *Registry) { reg.deps.publisher = p }
}

// WithGameDataGenerator 替換題目產生器
func WithGameDataGenerator(g *GameDataGenerator) Option {
	return func(reg *Registry) { reg.deps.generator = g }
}

// WithCodeGenerator 替換房間代碼產生函數
func WithCodeGenerator(fn func() string) Option {
	return func(reg *Registry) { reg.newCode = fn }
}

// WithIDGenerator 替換玩家 ID 產生函數
func WithIDGenerator(fn func() string) Option {
	return func(reg *Registry) { reg.newID = fn }
}

// Registry 房間代碼 → 房間
type Registry struct {
	deps    *roomDeps
	newCode func() string
	newID   func() string

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

// RegistryStats 統計資訊
type RegistryStats struct {
	TotalRooms   int               `json:"total_rooms"`
	TotalPlayers int               `json:"total_players"`
	ByState      map[RoomState]int `json:"by_state"`
}

// NewRegistry 創建房間註冊表
func NewRegistry(cfg GameConfig, logger *slog.Logger, opts ...Option) *Registry {
	reg := &Registry{
		deps: &roomDeps{
			cfg:       cfg,
			ticks:     tickerSource{},
			publisher: events.NopPublisher{},
			logger:    logger,
		},
		newCode: randomRoomCode,
		newID:   uuid.NewString,
		rooms:   make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.deps.generator == nil {
		reg.deps.generator = NewGameDataGenerator(cfg, nil)
	}
	return reg
}

func randomRoomCode() string {
	return strconv.Itoa(minRoomCode + rand.IntN(maxRoomCodes))
}

// CreateRoom 創建房間，建立者成為房主
//
// 建立者的 Mailbox 依序收到 room_created 與 player_list_update。
func (reg *Registry) CreateRoom(hostName string, out Mailbox) (string, string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.closed {
		return "", "", apperrors.ErrInternal.WithDetails("registry closed")
	}
	if len(reg.rooms) >= reg.deps.cfg.MaxRooms {
		return "", "", apperrors.ErrRoomLimitReached
	}

	code, ok := reg.allocateCodeLocked()
	if !ok {
		return "", "", apperrors.ErrRoomLimitReached
	}

	hostID := reg.newID()
	room := newRoom(code, reg.deps)
	reg.rooms[code] = room
	room.admitHost(hostID, hostName, out)

	room.publish(events.TypeRoomCreated, map[string]any{"hostId": hostID})

	reg.deps.logger.Info("房間已創建",
		"room_code", code,
		"host_id", hostID,
		"rooms", len(reg.rooms))

	return code, hostID, nil
}

// allocateCodeLocked 先隨機嘗試，再順序掃描空閒代碼
func (reg *Registry) allocateCodeLocked() (string, bool) {
	for range maxCodeAttempts {
		code := reg.newCode()
		if !validRoomCode(code) {
			continue
		}
		if _, taken := reg.rooms[code]; !taken {
			return code, true
		}
	}

	for n := minRoomCode; n < minRoomCode+maxRoomCodes; n++ {
		code := strconv.Itoa(n)
		if _, taken := reg.rooms[code]; !taken {
			return code, true
		}
	}
	return "", false
}

func validRoomCode(code string) bool {
	n, err := strconv.Atoi(code)
	return err == nil && len(code) == 4 && n >= minRoomCode && n < minRoomCode+maxRoomCodes
}

// Get 查詢房間
func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.Lock()
	room, exists := reg.rooms[code]
	reg.mu.Unlock()

	if !exists {
		return nil, apperrors.ErrRoomNotFound
	}
	return room, nil
}

// Join 以新的玩家 ID 加入房間
func (reg *Registry) Join(code, name string, out Mailbox) (*Room, string, error) {
	room, err := reg.Get(code)
	if err != nil {
		return nil, "", err
	}

	id := reg.newID()
	if err := room.Join(id, name, out); err != nil {
		return nil, "", err
	}
	return room, id, nil
}

// RemoveIfEmpty 房間沒有玩家時移除，計時器在同一臨界區內取消
func (reg *Registry) RemoveIfEmpty(code string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, exists := reg.rooms[code]
	if !exists {
		return false
	}
	if !room.closeIfEmpty() {
		return false
	}

	delete(reg.rooms, code)
	room.publish(events.TypeRoomClosed, nil)

	reg.deps.logger.Info("房間已移除", "room_code", code, "rooms", len(reg.rooms))
	return true
}

// Stats 統計資訊
func (reg *Registry) Stats() RegistryStats {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.Unlock()

	stats := RegistryStats{
		TotalRooms: len(rooms),
		ByState: map[RoomState]int{
			StateWaiting:  0,
			StatePlaying:  0,
			StateFinished: 0,
		},
	}
	for _, room := range rooms {
		room.mu.Lock()
		stats.TotalPlayers += len(room.players)
		stats.ByState[room.state]++
		room.mu.Unlock()
	}
	return stats
}

// Close 關閉所有房間並取消計時器（服務器關閉時呼叫）
func (reg *Registry) Close() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.closed {
		return
	}
	reg.closed = true

	for code, room := range reg.rooms {
		room.close()
		delete(reg.rooms, code)
	}

	reg.deps.logger.Info("房間註冊表已關閉")
}
