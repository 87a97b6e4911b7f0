package internal

import (
	"sync"
	"time"
)

// TickSource 產生倒數計時的節拍
//
// Start 返回節拍通道與停止函數；測試可替換為手動觸發的實作。
type TickSource interface {
	Start(interval time.Duration) (<-chan time.Time, func())
}

// tickerSource 以 time.Ticker 實作 TickSource
type tickerSource struct{}

func (tickerSource) Start(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// countdown 一個 Playing 房間的計時器
//
// 每個節拍呼叫一次 onTick；cancel 可重複呼叫，只生效一次。
// cancel 不等待 goroutine 結束，已在途的 onTick 需自行檢查房間狀態。
type countdown struct {
	stop func()
	done chan struct{}
	once sync.Once
}

func startCountdown(src TickSource, interval time.Duration, onTick func()) *countdown {
	ticks, stop := src.Start(interval)
	c := &countdown{
		stop: stop,
		done: make(chan struct{}),
	}
	go c.run(ticks, onTick)
	return c
}

func (c *countdown) run(ticks <-chan time.Time, onTick func()) {
	for {
		select {
		case <-c.done:
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			onTick()
		}
	}
}

func (c *countdown) cancel() {
	c.once.Do(func() {
		c.stop()
		close(c.done)
	})
}
