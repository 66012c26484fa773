package dispatch

import (
	"time"

	"guardian-relay/internal/models"
)

// Delivery 单个管理员的投递结果
type Delivery struct {
	Recipient string
	TextSent  bool
	AudioSent bool
	Err       error // 文本投递失败
	AudioErr  error // 文本成功但提示音失败
}

// Report 一次告警分发的结果；InProgress 只在本次调用期间为 true
type Report struct {
	DispatchID string
	UnitID     string
	Category   models.EmergencyCategory
	StartedAt  time.Time
	FinishedAt time.Time
	InProgress bool
	Deliveries []Delivery
}

// Failures 文本投递失败的收件人
func (r *Report) Failures() []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// Delivered 文本投递成功的收件人数
func (r *Report) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.TextSent {
			n++
		}
	}
	return n
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
