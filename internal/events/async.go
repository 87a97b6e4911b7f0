package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull 發布佇列已滿，事件被丟棄
var ErrQueueFull = errors.New("events: publish queue full")

// ErrPublisherClosed 發布者已關閉
var ErrPublisherClosed = errors.New("events: publisher closed")

// publishTimeout 單一事件送往下游的超時
const publishTimeout = 5 * time.Second

// AsyncPublisher 以有界佇列包裝下游 Publisher
//
// Publish 只做非阻塞入列，佇列滿時直接丟棄並返回 ErrQueueFull；
// 單一 worker goroutine 依序送往下游，因此同一房間的事件保持順序。
type AsyncPublisher struct {
	next   Publisher
	logger *slog.Logger
	queue  chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncPublisher 創建非同步發布者並啟動 worker
func NewAsyncPublisher(next Publisher, size int, logger *slog.Logger) *AsyncPublisher {
	if size <= 0 {
		size = 1
	}
	p := &AsyncPublisher{
		next:   next,
		logger: logger,
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish 非阻塞入列
func (p *AsyncPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close 停止接受新事件，送完佇列中剩餘的事件後關閉下游
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.next.Close()
}

func (p *AsyncPublisher) run() {
	defer close(p.done)

	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.next.Publish(ctx, ev); err != nil {
			p.logger.Warn("事件發布失敗",
				"type", ev.Type,
				"room_code", ev.RoomCode,
				"error", err)
		}
		cancel()
	}
}
