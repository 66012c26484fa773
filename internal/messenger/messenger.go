package messenger

import (
	"context"

	"guardian-relay/internal/models"
)

// Messenger 出站消息能力（Telegram、MQTT 等传输层实现）
// 文本与音频相互独立，任一都可能失败
type Messenger interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendAudio(ctx context.Context, recipientID string, audio models.Audio, caption string) error
}
