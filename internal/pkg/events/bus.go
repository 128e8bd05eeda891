package events

import (
	"context"
	"sync"
	"time"
	"ustp_things/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type 事件类型
type Type string

const (
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
	PaymentFailed      Type = "payment.failed"
)

// OrderPayload 订单相关事件的载荷，金额统一用两位小数字符串
type OrderPayload struct {
	OrderID        string `json:"order_id,omitempty"`
	ExternalID     string `json:"external_id,omitempty"`
	BuyerID        string `json:"buyer_id"`
	SellerID       string `json:"seller_id,omitempty"`
	ProductID      string `json:"product_id,omitempty"`
	Status         string `json:"status,omitempty"`
	PreviousStatus string `json:"previous_status,omitempty"`
	TotalAmount    string `json:"total_amount,omitempty"`
	PaymentMethod  string `json:"payment_method,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Event 总线上流转的事件
type Event struct {
	ID        string       `json:"id"`
	Type      Type         `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   OrderPayload `json:"payload"`
}

// NewEvent 生成带 ID 和时间戳的事件
func NewEvent(t Type, payload OrderPayload) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Subscriber 事件订阅者
type Subscriber interface {
	Name() string
	Types() []Type
	Handle(ctx context.Context, event Event) error
}

// Bus 进程内事件总线，Publish 非阻塞，队列满时丢弃并记录日志
type Bus struct {
	subscribers map[Type][]Subscriber
	mu          sync.RWMutex
	queue       chan Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
	timeout     time.Duration
}

func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Bus{
		subscribers: make(map[Type][]Subscriber),
		queue:       make(chan Event, queueSize),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
		timeout:     5 * time.Second,
	}
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range s.Types() {
		b.subscribers[t] = append(b.subscribers[t], s)
	}
}

// Publish 发布事件
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	select {
	case b.queue <- event:
	default:
		logger.Log.Warn("event queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
		)
	}
}

// Start 启动分发协程
func (b *Bus) Start() {
	go func() {
		defer close(b.done)
		for {
			select {
			case event := <-b.queue:
				b.Dispatch(context.Background(), event)
			case <-b.stopCh:
				// 把已入队的事件处理完再退出
				for {
					select {
					case event := <-b.queue:
						b.Dispatch(context.Background(), event)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop 停止总线并等待队列排空
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.done
}

// Dispatch 同步地把事件交给所有订阅者，单个订阅者失败不影响其他订阅者
func (b *Bus) Dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	for _, s := range subs {
		hctx, cancel := context.WithTimeout(ctx, b.timeout)
		if err := s.Handle(hctx, event); err != nil {
			logger.Log.Error("event subscriber failed",
				zap.String("subscriber", s.Name()),
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err),
			)
		}
		cancel()
	}
}
