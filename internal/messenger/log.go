package messenger

import (
	"context"

	"guardian-relay/internal/models"

	"go.uber.org/zap"
)

// Log 只写日志不发送的 Messenger（未配置传输层时使用）
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) SendText(_ context.Context, recipientID, text string) error {
	l.logger.Info("Outbound text (dry run)",
		zap.String("recipient_id", recipientID),
		zap.String("text", text),
	)
	return nil
}

func (l *Log) SendAudio(_ context.Context, recipientID string, audio models.Audio, caption string) error {
	l.logger.Info("Outbound audio (dry run)",
		zap.String("recipient_id", recipientID),
		zap.String("audio", audio.Name),
		zap.String("caption", caption),
	)
	return nil
}
