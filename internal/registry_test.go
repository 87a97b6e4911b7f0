package internal_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/hanbo386/number-maze/internal"
	"github.com/hanbo386/number-maze/internal/events"
	apperrors "github.com/hanbo386/number-maze/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturePublisher 記錄收到的事件
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]events.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// fixedCodes 依序返回給定的代碼，用完後重複最後一個
func fixedCodes(codes ...string) func() string {
	var (
		mu sync.Mutex
		i  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[min(i, len(codes)-1)]
		i++
		return code
	}
}

// TestRegistry_CreateRoom_UniqueCodes 測試並發建立房間代碼唯一
func TestRegistry_CreateRoom_UniqueCodes(t *testing.T) {
	reg := internal.NewRegistry(testGameConfig(), newTestLogger())

	const n = 200
	codes := make([]string, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, _, err := reg.CreateRoom("player", &recorder{})
			assert.NoError(t, err)
			codes[i] = code
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, code := range codes {
		require.Len(t, code, 4)
		num, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, num, 1000)
		assert.LessOrEqual(t, num, 9999)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}

	assert.Equal(t, n, reg.Stats().TotalRooms)
}

// TestRegistry_CreateRoom_CodeAllocation 測試代碼衝突與無效代碼
func TestRegistry_CreateRoom_CodeAllocation(t *testing.T) {
	tests := []struct {
		name      string
		generator func() string
		rooms     int
		wantCodes []string
	}{
		{
			name:      "retry taken code",
			generator: fixedCodes("1234", "1234", "5678"),
			rooms:     2,
			wantCodes: []string{"1234", "5678"},
		},
		{
			name:      "skip invalid codes",
			generator: fixedCodes("12", "abcd", "0999", "10000", "4321"),
			rooms:     1,
			wantCodes: []string{"4321"},
		},
		{
			name:      "scan when random attempts keep colliding",
			generator: fixedCodes("1000"),
			rooms:     3,
			wantCodes: []string{"1000", "1001", "1002"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := internal.NewRegistry(testGameConfig(), newTestLogger(),
				internal.WithCodeGenerator(tt.generator))

			var got []string
			for range tt.rooms {
				code, _, err := reg.CreateRoom("host", &recorder{})
				require.NoError(t, err)
				got = append(got, code)
			}
			assert.Equal(t, tt.wantCodes, got)
		})
	}
}

// TestRegistry_CreateRoom_Limit 測試房間上限
func TestRegistry_CreateRoom_Limit(t *testing.T) {
	cfg := testGameConfig()
	cfg.MaxRooms = 2
	reg := internal.NewRegistry(cfg, newTestLogger())

	for range 2 {
		_, _, err := reg.CreateRoom("host", &recorder{})
		require.NoError(t, err)
	}

	mb := &recorder{}
	_, _, err := reg.CreateRoom("host", mb)
	assert.ErrorIs(t, err, apperrors.ErrRoomLimitReached)
	assert.Empty(t, mb.types(t))
}

// TestRegistry_Get 測試查詢不存在的房間
func TestRegistry_Get(t *testing.T) {
	reg := internal.NewRegistry(testGameConfig(), newTestLogger())

	_, err := reg.Get("9999")
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)

	_, _, err = reg.Join("9999", "Bob", &recorder{})
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

// TestRegistry_RemoveIfEmpty 測試回收空房間
func TestRegistry_RemoveIfEmpty(t *testing.T) {
	ticks := newManualTicks()
	reg := internal.NewRegistry(testGameConfig(), newTestLogger(), internal.WithTickSource(ticks))

	code, hostID, err := reg.CreateRoom("Alice", &recorder{})
	require.NoError(t, err)
	room, bobID, err := reg.Join(code, "Bob", &recorder{})
	require.NoError(t, err)
	require.NoError(t, room.StartGame(hostID))

	assert.False(t, reg.RemoveIfEmpty(code), "room still has players")

	room.RemovePlayer(hostID)
	assert.False(t, reg.RemoveIfEmpty(code))
	room.RemovePlayer(bobID)
	assert.True(t, reg.RemoveIfEmpty(code))

	_, err = reg.Get(code)
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
	assert.False(t, reg.RemoveIfEmpty(code))

	_, stopped := ticks.counts()
	assert.Equal(t, 1, stopped, "timer cancelled on removal")

	// 在途的節拍不再作用
	room.Tick()
	assert.Equal(t, internal.StatePlaying, room.State())
}

// TestRegistry_Stats 測試統計資訊
func TestRegistry_Stats(t *testing.T) {
	reg := internal.NewRegistry(testGameConfig(), newTestLogger(), internal.WithTickSource(newManualTicks()))

	_, _, err := reg.CreateRoom("solo", &recorder{})
	require.NoError(t, err)

	code, hostID, err := reg.CreateRoom("Alice", &recorder{})
	require.NoError(t, err)
	room, _, err := reg.Join(code, "Bob", &recorder{})
	require.NoError(t, err)
	require.NoError(t, room.StartGame(hostID))

	stats := reg.Stats()
	assert.Equal(t, 2, stats.TotalRooms)
	assert.Equal(t, 3, stats.TotalPlayers)
	assert.Equal(t, 1, stats.ByState[internal.StateWaiting])
	assert.Equal(t, 1, stats.ByState[internal.StatePlaying])
	assert.Equal(t, 0, stats.ByState[internal.StateFinished])
}

// TestRegistry_Close 測試關閉時取消所有計時器
func TestRegistry_Close(t *testing.T) {
	ticks := newManualTicks()
	reg := internal.NewRegistry(testGameConfig(), newTestLogger(), internal.WithTickSource(ticks))

	code, hostID, err := reg.CreateRoom("Alice", &recorder{})
	require.NoError(t, err)
	room, _, err := reg.Join(code, "Bob", &recorder{})
	require.NoError(t, err)
	require.NoError(t, room.StartGame(hostID))

	reg.Close()
	reg.Close()

	_, stopped := ticks.counts()
	assert.Equal(t, 1, stopped)
	assert.Zero(t, reg.Stats().TotalRooms)

	_, _, err = reg.CreateRoom("late", &recorder{})
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.CodeOf(err))
}

// TestRegistry_PublishesLifecycleEvents 測試房間事件
func TestRegistry_PublishesLifecycleEvents(t *testing.T) {
	pub := &capturePublisher{}
	reg := internal.NewRegistry(testGameConfig(), newTestLogger(),
		internal.WithTickSource(newManualTicks()),
		internal.WithPublisher(pub))

	code, hostID, err := reg.CreateRoom("Alice", &recorder{})
	require.NoError(t, err)
	room, bobID, err := reg.Join(code, "Bob", &recorder{})
	require.NoError(t, err)
	require.NoError(t, room.StartGame(hostID))
	room.EndGame()
	room.RemovePlayer(hostID)
	room.RemovePlayer(bobID)
	require.True(t, reg.RemoveIfEmpty(code))

	assert.Equal(t, []events.Type{
		events.TypeRoomCreated,
		events.TypeGameStarted,
		events.TypeGameEnded,
		events.TypeRoomClosed,
	}, pub.types())

	for _, ev := range pub.events {
		assert.Equal(t, code, ev.RoomCode)
		assert.False(t, ev.OccurredAt.IsZero())
	}
}
