package internal

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hanbo386/number-maze/internal/events"
	apperrors "github.com/hanbo386/number-maze/pkg/errors"
)

// 系統設計：
//   房間是一個小型狀態機，所有修改在 mu 之下完成。
//   廣播在持鎖期間以非阻塞方式寫入各連線的 Mailbox，
//   因此同一房間的訊息順序與狀態轉換順序一致。
//
//   鎖順序：Registry.mu → Room.mu，反向不可。

// RoomState 房間狀態
//
//	waiting → playing → finished
//
// 只能前進，不會回退。
type RoomState string

const (
	StateWaiting  RoomState = "waiting"  // 等待玩家加入
	StatePlaying  RoomState = "playing"  // 遊戲進行中
	StateFinished RoomState = "finished" // 遊戲結束，保留到所有玩家離開
)

// roomDeps 由 Registry 注入，所有房間共用
type roomDeps struct {
	cfg       GameConfig
	ticks     TickSource
	generator *GameDataGenerator
	publisher events.Publisher
	logger    *slog.Logger
}

// Room 遊戲房間
type Room struct {
	code string
	deps *roomDeps

	mu        sync.Mutex
	hostID    string
	players   []*Player // 依加入順序
	nextSeq   uint64
	state     RoomState
	gameData  *GameData
	remaining int
	timer     *countdown
	closed    bool // 已從 Registry 移除
}

// RoomSnapshot 房間的唯讀快照（HTTP 查詢用）
type RoomSnapshot struct {
	Code          string       `json:"roomCode"`
	State         RoomState    `json:"state"`
	HostID        string       `json:"hostId"`
	Players       []PlayerInfo `json:"players"`
	TimeRemaining int          `json:"timeRemaining"`
}

func newRoom(code string, deps *roomDeps) *Room {
	return &Room{
		code:  code,
		deps:  deps,
		state: StateWaiting,
	}
}

// Code 房間代碼
func (r *Room) Code() string {
	return r.code
}

// State 當前狀態
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PlayerCount 玩家人數
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Snapshot 取得房間快照
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RoomSnapshot{
		Code:          r.code,
		State:         r.state,
		HostID:        r.hostID,
		Players:       r.playerListLocked(),
		TimeRemaining: r.remaining,
	}
}

// admitHost 建立者加入並成為房主，房間此時尚未對其他連線可見
func (r *Room) admitHost(id, name string, out Mailbox) {
	r.mu.Lock()
	defer r.mu.Unlock()

	host := r.addPlayerLocked(id, name, out)
	host.IsHost = true
	r.hostID = id

	host.send(encodeMessage(RoomCreatedMessage{
		Type:     TypeRoomCreated,
		RoomCode: r.code,
		PlayerID: id,
		IsHost:   true,
	}))
	host.send(encodeMessage(PlayerListUpdateMessage{
		Type:    TypePlayerListUpdate,
		Players: r.playerListLocked(),
	}))
}

// Join 加入房間，只允許在 waiting 狀態
func (r *Room) Join(id, name string, out Mailbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return apperrors.ErrRoomNotFound
	}
	if r.state != StateWaiting {
		return apperrors.ErrAlreadyStarted
	}

	player := r.addPlayerLocked(id, name, out)

	players := r.playerListLocked()
	player.send(encodeMessage(RoomJoinedMessage{
		Type:     TypeRoomJoined,
		RoomCode: r.code,
		PlayerID: id,
		IsHost:   false,
		Players:  players,
	}))
	r.broadcastLocked(encodeMessage(PlayerListUpdateMessage{
		Type:    TypePlayerListUpdate,
		Players: players,
	}))

	r.deps.logger.Info("玩家加入房間",
		"room_code", r.code,
		"player_id", id,
		"player_name", player.Name,
		"players", len(r.players))

	return nil
}

// SetReady 設置準備狀態
func (r *Room) SetReady(id string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return apperrors.ErrRoomNotFound
	}
	player := r.findLocked(id)
	if player == nil {
		return apperrors.ErrForbidden
	}
	if r.state != StateWaiting {
		return apperrors.ErrInvalidState
	}

	player.Ready = ready
	r.broadcastPlayerListLocked()
	return nil
}

// StartGame 房主開始遊戲
//
// 檢查順序：房主 → 人數 → 狀態。
func (r *Room) StartGame(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return apperrors.ErrRoomNotFound
	}
	if requesterID != r.hostID {
		return apperrors.ErrNotHost
	}
	if len(r.players) < r.deps.cfg.MinPlayers {
		return apperrors.ErrInsufficientPlayers
	}
	if r.state != StateWaiting {
		return apperrors.ErrInvalidState
	}

	r.gameData = r.deps.generator.Generate()
	r.state = StatePlaying
	r.remaining = r.gameData.Countdown

	r.broadcastLocked(encodeMessage(GameStartMessage{
		Type:     TypeGameStart,
		GameData: r.gameData,
	}))

	r.timer = startCountdown(r.deps.ticks, r.deps.cfg.TickInterval, r.Tick)

	r.publish(events.TypeGameStarted, map[string]any{
		"players":       len(r.players),
		"targetSum":     r.gameData.TargetSum,
		"operationMode": r.gameData.OperationMode,
		"countdown":     r.gameData.Countdown,
	})

	r.deps.logger.Info("遊戲開始",
		"room_code", r.code,
		"players", len(r.players),
		"target", r.gameData.TargetSum,
		"mode", r.gameData.OperationMode)

	return nil
}

// Tick 倒數一秒；非 playing 或已移除的房間直接忽略
func (r *Room) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.state != StatePlaying {
		return
	}

	r.remaining--
	r.broadcastLocked(encodeMessage(CountdownUpdateMessage{
		Type:          TypeCountdownUpdate,
		TimeRemaining: r.remaining,
	}))

	if r.remaining <= 0 {
		r.endLocked()
	}
}

// SubmitScore 提交分數（覆蓋舊值）
func (r *Room) SubmitScore(id string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return apperrors.ErrRoomNotFound
	}
	player := r.findLocked(id)
	if player == nil {
		return apperrors.ErrForbidden
	}
	if r.state != StatePlaying {
		return apperrors.ErrInvalidState
	}

	player.Score = score
	r.broadcastLocked(encodeMessage(ScoreUpdateMessage{
		Type:   TypeScoreUpdate,
		Scores: r.rankingLocked(),
	}))
	return nil
}

// EndGame 結束遊戲，可重複呼叫
func (r *Room) EndGame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLocked()
}

func (r *Room) endLocked() {
	if r.state != StatePlaying {
		return
	}

	r.cancelTimerLocked()
	r.state = StateFinished

	rankings := r.rankingLocked()
	r.broadcastLocked(encodeMessage(GameEndMessage{
		Type:     TypeGameEnd,
		Rankings: rankings,
	}))

	r.publish(events.TypeGameEnded, map[string]any{
		"rankings": rankings,
	})

	r.deps.logger.Info("遊戲結束", "room_code", r.code, "players", len(r.players))
}

// RemovePlayer 移除玩家，返回剩餘人數
//
// 房主離開且仍有玩家時，最早加入的玩家成為新房主並單獨收到 host_transferred。
// 房間變空時同時關閉並取消計時器。
func (r *Room) RemovePlayer(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.players, func(p *Player) bool { return p.ID == id })
	if idx < 0 {
		return len(r.players)
	}

	leaving := r.players[idx]
	r.players = slices.Delete(r.players, idx, idx+1)

	r.deps.logger.Info("玩家離開房間",
		"room_code", r.code,
		"player_id", id,
		"players", len(r.players))

	// 最後一人離開即關閉，之後的 Join 返回 RoomNotFound，由 Registry 回收
	if len(r.players) == 0 {
		r.hostID = ""
		r.closeLocked()
		return 0
	}

	if leaving.IsHost {
		next := r.players[0]
		next.IsHost = true
		r.hostID = next.ID
		next.send(encodeMessage(HostTransferredMessage{
			Type:   TypeHostTransferred,
			IsHost: true,
		}))

		r.deps.logger.Info("房主已轉移",
			"room_code", r.code,
			"from", leaving.ID,
			"to", next.ID)
	}

	r.broadcastPlayerListLocked()
	return len(r.players)
}

// closeIfEmpty 沒有玩家時關閉房間並取消計時器（RemovePlayer 可能已關閉）
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) > 0 {
		return false
	}
	r.closeLocked()
	return true
}

// close 強制關閉（服務器關閉時）
func (r *Room) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Room) closeLocked() {
	if r.closed {
		return
	}
	r.cancelTimerLocked()
	r.closed = true
}

func (r *Room) cancelTimerLocked() {
	if r.timer != nil {
		r.timer.cancel()
		r.timer = nil
	}
}

func (r *Room) addPlayerLocked(id, name string, out Mailbox) *Player {
	if name == "" {
		name = defaultPlayerName(id)
	}
	r.nextSeq++
	player := &Player{
		ID:      id,
		Name:    name,
		joinSeq: r.nextSeq,
		out:     out,
	}
	r.players = append(r.players, player)
	return player
}

func (r *Room) findLocked(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerListLocked() []PlayerInfo {
	list := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		list = append(list, p.info())
	}
	return list
}

// rankingLocked 分數由高到低，同分依加入順序
func (r *Room) rankingLocked() []ScoreEntry {
	sorted := slices.Clone(r.players)
	slices.SortFunc(sorted, func(a, b *Player) int {
		return cmp.Or(
			cmp.Compare(b.Score, a.Score),
			cmp.Compare(a.joinSeq, b.joinSeq),
		)
	})

	entries := make([]ScoreEntry, 0, len(sorted))
	for _, p := range sorted {
		entries = append(entries, p.scoreEntry())
	}
	return entries
}

func (r *Room) broadcastPlayerListLocked() {
	r.broadcastLocked(encodeMessage(PlayerListUpdateMessage{
		Type:    TypePlayerListUpdate,
		Players: r.playerListLocked(),
	}))
}

func (r *Room) broadcastLocked(msg []byte) {
	for _, p := range r.players {
		if !p.send(msg) {
			r.deps.logger.Warn("發送佇列已滿，丟棄訊息",
				"room_code", r.code,
				"player_id", p.ID)
		}
	}
}

func (r *Room) publish(t events.Type, payload any) {
	if err := r.deps.publisher.Publish(context.Background(), events.New(t, r.code, payload)); err != nil {
		r.deps.logger.Warn("事件入列失敗",
			"type", t,
			"room_code", r.code,
			"error", err)
	}
}
