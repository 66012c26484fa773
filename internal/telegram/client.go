package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"guardian-relay/common/config"
	"guardian-relay/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const parseModeMarkdown = "Markdown"

// Client Telegram Bot API 客户端，实现 messenger.Messenger
// 不做重试：一次分发内每个收件人只尝试一次
type Client struct {
	httpClient  *resty.Client
	pollTimeout time.Duration
	logger      *zap.Logger

	mu          sync.RWMutex
	audioFileID map[string]string // 本地路径 -> 已上传的 file_id
}

// NewClient 创建 Bot API 客户端
func NewClient(cfg *config.TelegramConfig, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s/bot%s", cfg.BaseURL, cfg.Token)).
		SetTimeout(cfg.PollTimeout + 10*time.Second). // 长轮询需要比服务端 timeout 更长
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient:  client,
		pollTimeout: cfg.PollTimeout,
		logger:      logger,
		audioFileID: map[string]string{},
	}
}

// SendText 发送 Markdown 文本
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	_, err := c.call(ctx, "sendMessage", c.httpClient.R().
		SetBody(map[string]any{
			"chat_id":    recipientID,
			"text":       text,
			"parse_mode": parseModeMarkdown,
		}))
	return err
}

// SendAudio 发送音频；优先使用 file_id，首次上传后缓存服务端返回的 file_id
func (c *Client) SendAudio(ctx context.Context, recipientID string, audio models.Audio, caption string) error {
	fileID := audio.FileID
	if fileID == "" && audio.Path != "" {
		c.mu.RLock()
		fileID = c.audioFileID[audio.Path]
		c.mu.RUnlock()
	}

	if fileID != "" {
		_, err := c.call(ctx, "sendAudio", c.httpClient.R().
			SetBody(map[string]any{
				"chat_id": recipientID,
				"audio":   fileID,
				"caption": caption,
			}))
		return err
	}

	if audio.Path == "" {
		return fmt.Errorf("audio %q has neither path nor file id: %w", audio.Name, models.ErrMalformedInput)
	}

	result, err := c.call(ctx, "sendAudio", c.httpClient.R().
		SetFile("audio", audio.Path).
		SetFormData(map[string]string{
			"chat_id": recipientID,
			"caption": caption,
		}))
	if err != nil {
		return err
	}

	var sent sentAudio
	if err := json.Unmarshal(result, &sent); err == nil && sent.Audio != nil && sent.Audio.FileID != "" {
		c.mu.Lock()
		c.audioFileID[audio.Path] = sent.Audio.FileID
		c.mu.Unlock()
	}
	return nil
}

// GetUpdates 长轮询获取 offset 之后的更新
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	result, err := c.call(ctx, "getUpdates", c.httpClient.R().
		SetQueryParams(map[string]string{
			"offset":          strconv.FormatInt(offset, 10),
			"timeout":         strconv.Itoa(int(c.pollTimeout / time.Second)),
			"allowed_updates": `["message"]`,
		}))
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, method string, req *resty.Request) (json.RawMessage, error) {
	var response apiResponse
	req.SetContext(ctx).SetResult(&response).SetError(&response)

	var (
		resp *resty.Response
		err  error
	)
	if method == "getUpdates" {
		resp, err = req.Get("/" + method)
	} else {
		resp, err = req.Post("/" + method)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w: %v", method, models.ErrDeliveryFailed, err)
	}

	if !response.OK {
		c.logger.Debug("Telegram API returned error",
			zap.String("method", method),
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("error_code", response.ErrorCode),
			zap.String("description", response.Description),
		)
		return nil, fmt.Errorf("telegram %s error: %s (code: %d): %w",
			method, response.Description, response.ErrorCode, models.ErrDeliveryFailed)
	}
	return response.Result, nil
}
