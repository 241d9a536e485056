package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event 发布到 Kafka 的通知事件
type Event struct {
	Source string    `json:"source"`
	Text   string    `json:"text"`
	Time   time.Time `json:"ts"`
}

// Kafka 把通知作为 JSON 事件发布，供下游系统消费
type Kafka struct {
	writer  messageWriter
	source  string
	timeout time.Duration
}

// NewKafka source 作为消息 key，保证同一实例的事件有序
func NewKafka(brokers []string, topic, source string) *Kafka {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Kafka{writer: w, source: source, timeout: 5 * time.Second}
}

func (k *Kafka) Notify(ctx context.Context, message string) {
	ev := Event{Source: k.source, Text: message, Time: time.Now().UTC()}
	value, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("kafka event marshal failed")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(k.source), Value: value}); err != nil {
		log.Error().Err(err).Msg("kafka publish failed")
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
