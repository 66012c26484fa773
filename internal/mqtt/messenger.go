package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"guardian-relay/internal/models"

	"go.uber.org/zap"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher MQTT 发布能力（由 common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, retained bool, payload []byte, timeout time.Duration) error
}

// Payload 发布到每个收件人主题的消息体
type Payload struct {
	Kind      string    `json:"kind"` // text 或 audio
	Recipient string    `json:"recipient"`
	Text      string    `json:"text,omitempty"`
	Audio     string    `json:"audio,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// Messenger 把消息发布到 {topicPrefix}/{recipientID}，供警报面板等设备订阅
type Messenger struct {
	publisher   Publisher
	topicPrefix string
	logger      *zap.Logger
}

func NewMessenger(publisher Publisher, topicPrefix string, logger *zap.Logger) *Messenger {
	return &Messenger{
		publisher:   publisher,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		logger:      logger,
	}
}

// Topic 收件人对应的主题
func (m *Messenger) Topic(recipientID string) string {
	return fmt.Sprintf("%s/%s", m.topicPrefix, recipientID)
}

func (m *Messenger) SendText(ctx context.Context, recipientID, text string) error {
	return m.publish(ctx, Payload{
		Kind:      "text",
		Recipient: recipientID,
		Text:      text,
	})
}

// SendAudio 只发布音频名称，由订阅端播放本地对应的提示音
func (m *Messenger) SendAudio(ctx context.Context, recipientID string, audio models.Audio, caption string) error {
	return m.publish(ctx, Payload{
		Kind:      "audio",
		Recipient: recipientID,
		Audio:     audio.Name,
		Caption:   caption,
	})
}

func (m *Messenger) publish(ctx context.Context, p Payload) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish to %s: %w: %v", p.Recipient, models.ErrDeliveryFailed, err)
	}
	p.SentAt = time.Now().UTC()

	jsonData, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	topic := m.Topic(p.Recipient)
	if err := m.publisher.Publish(topic, false, jsonData, timeout); err != nil {
		return fmt.Errorf("publish to %s: %w: %v", topic, models.ErrDeliveryFailed, err)
	}

	m.logger.Debug("Published message",
		zap.String("topic", topic),
		zap.String("kind", p.Kind),
	)
	return nil
}
