package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink 将审计记录发布到 Kafka，按实体 id 分区
type KafkaSink struct {
	writer *kafka.Writer
}

type kafkaEnvelope struct {
	Action     string                 `json:"action"`
	Severity   string                 `json:"severity"`
	ActorId    string                 `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	EntityType string                 `json:"entity_type"`
	EntityId   string                 `json:"entity_id"`
	Message    string                 `json:"message"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewKafkaSink 创建 Kafka 审计落地
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka audit sink requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka audit sink requires a topic")
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}, nil
}

// Record 发布一条审计记录
func (s *KafkaSink) Record(ctx context.Context, entry Entry) error {
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(kafkaEnvelope{
		Action:     entry.Action,
		Severity:   string(entry.Severity),
		ActorId:    entry.ActorId,
		ActorRole:  entry.ActorRole,
		EntityType: entry.EntityType,
		EntityId:   entry.EntityId,
		Message:    entry.Message,
		Metadata:   entry.Metadata,
		OccurredAt: occurredAt,
	})
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.EntityId),
		Value: payload,
	})
}

// Close 关闭底层 writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
