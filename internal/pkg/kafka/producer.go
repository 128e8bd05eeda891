package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"ustp_things/internal/pkg/events"
	"ustp_things/pkg/logger"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Producer 把订单事件写入 Kafka，topic = prefix + 事件类型
type Producer struct {
	producer    sarama.SyncProducer
	topicPrefix string
}

// NewProducer 连接 brokers，失败时重试若干次
func NewProducer(brokers []string, topicPrefix string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	var (
		producer sarama.SyncProducer
		err      error
	)
	for i := 1; i <= 5; i++ {
		producer, err = sarama.NewSyncProducer(brokers, cfg)
		if err == nil {
			logger.Log.Info("kafka producer initialized", zap.Strings("brokers", brokers))
			return NewProducerWith(producer, topicPrefix), nil
		}
		logger.Log.Warn("waiting for kafka", zap.Int("attempt", i), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("start kafka producer: %w", err)
}

// NewProducerWith 包装已有的 SyncProducer
func NewProducerWith(p sarama.SyncProducer, topicPrefix string) *Producer {
	return &Producer{producer: p, topicPrefix: topicPrefix}
}

func (p *Producer) Name() string { return "kafka" }

func (p *Producer) Types() []events.Type {
	return []events.Type{events.OrderCreated, events.OrderStatusChanged, events.PaymentFailed}
}

// Handle 以订单 ID (没有时用 externalID) 作为 key，保证同一订单的事件落在同一分区
func (p *Producer) Handle(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := event.Payload.OrderID
	if key == "" {
		key = event.Payload.ExternalID
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topicPrefix + string(event.Type),
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(data),
		Timestamp: event.Timestamp,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send kafka message: %w", err)
	}

	logger.Log.Debug("event published to kafka",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
