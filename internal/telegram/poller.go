package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"guardian-relay/internal/classifier"
	"guardian-relay/internal/models"

	"go.uber.org/zap"
)

// Handler 入站消息处理（由 router.Router 实现）
type Handler interface {
	Route(ctx context.Context, msg models.InboundMessage) error
}

// Poller 通过 getUpdates 长轮询接收消息并逐条交给 Handler
// 只处理私聊；回复以发送者 ID 作为 chat_id
type Poller struct {
	client  *Client
	handler Handler
	logger  *zap.Logger
	offset  int64
}

func NewPoller(client *Client, handler Handler, logger *zap.Logger) *Poller {
	return &Poller{
		client:  client,
		handler: handler,
		logger:  logger,
	}
}

// Start 启动轮询循环，直到 ctx 取消
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("Telegram poller started")

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Telegram poller stopped")
			return nil
		default:
		}

		updates, err := p.client.GetUpdates(ctx, p.offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("Failed to get updates",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second

		for _, u := range updates {
			p.offset = u.UpdateID + 1
			msg, ok := ToInbound(u)
			if !ok {
				continue
			}
			if err := p.handler.Route(ctx, msg); err != nil {
				p.logger.Error("Failed to handle update",
					zap.Int64("update_id", u.UpdateID),
					zap.String("sender_id", msg.Sender.ID),
					zap.Error(err),
				)
			}
		}
	}
}

// ToInbound 把 Telegram 更新转换为入站消息；非私聊或无文本的更新返回 false
// 分享本人联系方式视为携带电话的注册申请
func ToInbound(u Update) (models.InboundMessage, bool) {
	m := u.Message
	if m == nil || m.From == nil || m.From.IsBot || m.Chat.Type != "private" {
		return models.InboundMessage{}, false
	}

	sender := models.Sender{
		ID:          strconv.FormatInt(m.From.ID, 10),
		DisplayName: strings.TrimSpace(m.From.FirstName + " " + m.From.LastName),
		Username:    m.From.Username,
	}
	text := m.Text
	if c := m.Contact; c != nil && c.UserID == m.From.ID {
		sender.Phone = strings.TrimSpace(c.PhoneNumber)
		text = classifier.RegistrationKeyword
	}
	if strings.TrimSpace(text) == "" {
		return models.InboundMessage{}, false
	}

	return models.InboundMessage{
		Sender:     sender,
		Text:       text,
		ReceivedAt: time.Unix(m.Date, 0),
	}, true
}
