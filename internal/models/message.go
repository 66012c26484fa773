package models

import "time"

// Sender 入站消息的发送者
type Sender struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// InboundMessage 入站文本消息
type InboundMessage struct {
	Sender     Sender    `json:"sender"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Command 入站命令（如 /cadastrar）
type Command struct {
	Sender Sender `json:"sender"`
	Name   string `json:"name"`
	Args   string `json:"args"`
}

// Audio 音频附件句柄（本地文件路径或传输层的文件 ID）
type Audio struct {
	Name   string
	Path   string
	FileID string
}
