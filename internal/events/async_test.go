package events_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hanbo386/number-maze/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev events.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// publishedCodes 依呼叫順序取出下游收到的房間代碼
func publishedCodes(m *MockPublisher) []string {
	var codes []string
	for _, call := range m.Calls {
		if call.Method == "Publish" {
			codes = append(codes, call.Arguments.Get(1).(events.Event).RoomCode)
		}
	}
	return codes
}

// TestAsyncPublisher_PreservesOrder 測試事件依序送往下游
func TestAsyncPublisher_PreservesOrder(t *testing.T) {
	next := &MockPublisher{}
	next.On("Publish", mock.Anything, mock.Anything).Return(nil)
	next.On("Close").Return(nil)

	p := events.NewAsyncPublisher(next, 32, newTestLogger())

	var want []string
	for i := range 20 {
		code := fmt.Sprintf("%04d", 1000+i)
		want = append(want, code)
		require.NoError(t, p.Publish(context.Background(), events.New(events.TypeRoomCreated, code, nil)))
	}

	require.NoError(t, p.Close())

	assert.Equal(t, want, publishedCodes(next))
	next.AssertNumberOfCalls(t, "Close", 1)
}

// TestAsyncPublisher_QueueFull 測試佇列滿時丟棄事件
func TestAsyncPublisher_QueueFull(t *testing.T) {
	started := make(chan struct{}, 1)
	gate := make(chan struct{})

	next := &MockPublisher{}
	next.On("Publish", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-gate
		}).
		Return(nil)
	next.On("Close").Return(nil)

	p := events.NewAsyncPublisher(next, 1, newTestLogger())
	ctx := context.Background()

	// 第一個事件被 worker 取走並卡住
	require.NoError(t, p.Publish(ctx, events.New(events.TypeRoomCreated, "1000", nil)))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not pick up the first event")
	}

	require.NoError(t, p.Publish(ctx, events.New(events.TypeRoomCreated, "1001", nil)))
	err := p.Publish(ctx, events.New(events.TypeRoomCreated, "1002", nil))
	assert.ErrorIs(t, err, events.ErrQueueFull)

	close(gate)
	require.NoError(t, p.Close())

	assert.Equal(t, []string{"1000", "1001"}, publishedCodes(next))
}

// TestAsyncPublisher_DownstreamError 測試下游失敗不影響後續事件
func TestAsyncPublisher_DownstreamError(t *testing.T) {
	next := &MockPublisher{}
	next.On("Publish", mock.Anything, mock.MatchedBy(func(ev events.Event) bool {
		return ev.RoomCode == "1000"
	})).Return(errors.New("connection reset"))
	next.On("Publish", mock.Anything, mock.Anything).Return(nil)
	next.On("Close").Return(nil)

	p := events.NewAsyncPublisher(next, 4, newTestLogger())
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, events.New(events.TypeGameEnded, "1000", nil)))
	require.NoError(t, p.Publish(ctx, events.New(events.TypeGameEnded, "2000", nil)))
	require.NoError(t, p.Close())

	assert.Equal(t, []string{"1000", "2000"}, publishedCodes(next))
}

// TestAsyncPublisher_Close 測試關閉後的行為
func TestAsyncPublisher_Close(t *testing.T) {
	next := &MockPublisher{}
	next.On("Close").Return(errors.New("drain failed"))

	p := events.NewAsyncPublisher(next, 4, newTestLogger())

	err := p.Close()
	assert.EqualError(t, err, "drain failed")

	// 重複關閉不再呼叫下游
	assert.NoError(t, p.Close())
	next.AssertNumberOfCalls(t, "Close", 1)

	err = p.Publish(context.Background(), events.New(events.TypeRoomClosed, "1000", nil))
	assert.ErrorIs(t, err, events.ErrPublisherClosed)
	next.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
