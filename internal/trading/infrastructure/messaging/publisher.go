// Package messaging 提供订单事件的 Kafka 发布实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/papertrading/internal/trading/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
)

// Config Kafka 发布配置
type Config struct {
	Brokers      []string
	Topic        string
	MaxRetries   int
	RetryBackoff time.Duration
}

// KafkaPublisher domain.EventPublisher 的 Kafka 实现
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaPublisher 创建 Kafka 事件发布者
func NewKafkaPublisher(cfg Config) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        cfg.RetryBackoff,
		WriteBackoffMax:        cfg.RetryBackoff * 10,
	}
	return &KafkaPublisher{writer: writer, topic: cfg.Topic}
}

// PublishOrderEvent 发布订单事件，以订单 ID 为分区键保证单订单事件有序
func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	})
	if err != nil {
		logger.Error(ctx, "failed to publish order event",
			"topic", p.topic,
			"order_id", event.OrderID,
			"type", event.Type,
			"error", err,
		)
		return err
	}

	logger.Debug(ctx, "order event published", "topic", p.topic, "order_id", event.OrderID, "type", event.Type)
	return nil
}

// Close 关闭底层 writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 空实现，Kafka 未启用时使用
type NopPublisher struct{}

// PublishOrderEvent 丢弃事件
func (NopPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	return nil
}
