package messenger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guardian-relay/internal/models"
)

// Sent 一次出站发送的记录
type Sent struct {
	Recipient string
	Text      string
	Audio     *models.Audio
	Caption   string
}

// Memory 记录所有发送内容的 Messenger，可按收件人注入故障或延迟
type Memory struct {
	mu        sync.Mutex
	sent      []Sent
	failText  map[string]error
	failAudio map[string]error
	delay     map[string]time.Duration
}

func NewMemory() *Memory {
	return &Memory{
		failText:  map[string]error{},
		failAudio: map[string]error{},
		delay:     map[string]time.Duration{},
	}
}

// FailText 发给 recipient 的文本返回 err
func (m *Memory) FailText(recipient string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failText[recipient] = err
}

// FailAudio 发给 recipient 的音频返回 err
func (m *Memory) FailAudio(recipient string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAudio[recipient] = err
}

// Delay 发给 recipient 的消息在返回前等待 d（遵守 ctx 取消）
func (m *Memory) Delay(recipient string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay[recipient] = d
}

func (m *Memory) SendText(ctx context.Context, recipientID, text string) error {
	if err := m.wait(ctx, recipientID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failText[recipientID]; err != nil {
		return err
	}
	m.sent = append(m.sent, Sent{Recipient: recipientID, Text: text})
	return nil
}

func (m *Memory) SendAudio(ctx context.Context, recipientID string, audio models.Audio, caption string) error {
	if err := m.wait(ctx, recipientID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failAudio[recipientID]; err != nil {
		return err
	}
	a := audio
	m.sent = append(m.sent, Sent{Recipient: recipientID, Audio: &a, Caption: caption})
	return nil
}

func (m *Memory) wait(ctx context.Context, recipientID string) error {
	m.mu.Lock()
	d := m.delay[recipientID]
	m.mu.Unlock()
	if d == 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send to %s: %w", recipientID, ctx.Err())
	}
}

// Sent 所有已发送的记录（副本）
func (m *Memory) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}

// TextsTo 发给 recipient 的全部文本
func (m *Memory) TextsTo(recipient string) []string {
	var out []string
	for _, s := range m.Sent() {
		if s.Recipient == recipient && s.Audio == nil {
			out = append(out, s.Text)
		}
	}
	return out
}

// AudiosTo 发给 recipient 的全部音频
func (m *Memory) AudiosTo(recipient string) []models.Audio {
	var out []models.Audio
	for _, s := range m.Sent() {
		if s.Recipient == recipient && s.Audio != nil {
			out = append(out, *s.Audio)
		}
	}
	return out
}
