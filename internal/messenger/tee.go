package messenger

import (
	"context"

	"guardian-relay/internal/models"

	"go.uber.org/zap"
)

// Tee 先发送到主通道，结果以主通道为准；副通道（如 MQTT 警报面板）尽力而为
type Tee struct {
	primary   Messenger
	secondary Messenger
	logger    *zap.Logger
}

func NewTee(primary, secondary Messenger, logger *zap.Logger) *Tee {
	return &Tee{primary: primary, secondary: secondary, logger: logger}
}

func (t *Tee) SendText(ctx context.Context, recipientID, text string) error {
	err := t.primary.SendText(ctx, recipientID, text)
	if serr := t.secondary.SendText(ctx, recipientID, text); serr != nil {
		t.logger.Warn("Secondary messenger failed",
			zap.String("recipient_id", recipientID),
			zap.Error(serr),
		)
	}
	return err
}

func (t *Tee) SendAudio(ctx context.Context, recipientID string, audio models.Audio, caption string) error {
	err := t.primary.SendAudio(ctx, recipientID, audio, caption)
	if serr := t.secondary.SendAudio(ctx, recipientID, audio, caption); serr != nil {
		t.logger.Warn("Secondary messenger failed",
			zap.String("recipient_id", recipientID),
			zap.Error(serr),
		)
	}
	return err
}
