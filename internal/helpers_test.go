package internal_test

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hanbo386/number-maze/internal"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testGameConfig() internal.GameConfig {
	cfg := internal.DefaultGameConfig()
	cfg.Countdown = 3
	return cfg
}

// recorder 記錄收到的訊息的 Mailbox
type recorder struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (r *recorder) Send(msg []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		return false
	}
	r.frames = append(r.frames, msg)
	return true
}

func (r *recorder) setFull(full bool) {
	r.mu.Lock()
	r.full = full
	r.mu.Unlock()
}

func (r *recorder) messages(t *testing.T) []map[string]any {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]map[string]any, 0, len(r.frames))
	for _, frame := range r.frames {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(frame, &msg))
		out = append(out, msg)
	}
	return out
}

func (r *recorder) types(t *testing.T) []string {
	t.Helper()

	var out []string
	for _, msg := range r.messages(t) {
		out = append(out, msg["type"].(string))
	}
	return out
}

// last 最後一則指定類型的訊息，沒有時為 nil
func (r *recorder) last(t *testing.T, msgType string) map[string]any {
	t.Helper()

	msgs := r.messages(t)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i]["type"] == msgType {
			return msgs[i]
		}
	}
	return nil
}

func (r *recorder) count(t *testing.T, msgType string) int {
	t.Helper()

	n := 0
	for _, typ := range r.types(t) {
		if typ == msgType {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

// manualTicks 手動觸發的 TickSource
type manualTicks struct {
	ch chan time.Time

	mu      sync.Mutex
	started int
	stopped int
}

func newManualTicks() *manualTicks {
	return &manualTicks{ch: make(chan time.Time)}
}

func (m *manualTicks) Start(time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	m.started++
	m.mu.Unlock()

	return m.ch, func() {
		m.mu.Lock()
		m.stopped++
		m.mu.Unlock()
	}
}

// fire 送出一個節拍，計時器已停止時逾時返回 false
func (m *manualTicks) fire() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

func (m *manualTicks) counts() (started, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started, m.stopped
}

// playerIDs 取出列表中的玩家 ID（依順序）
func playerIDs(t *testing.T, list any) []string {
	t.Helper()

	items, ok := list.([]any)
	require.True(t, ok, "expected a list, got %T", list)

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.(map[string]any)["playerId"].(string))
	}
	return ids
}

// sequentialIDs 產生可預測的玩家 ID
func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%04d", prefix, n)
	}
}
