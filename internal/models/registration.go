package models

import "time"

// RegistrationState 注册状态机
type RegistrationState string

const (
	RegistrationNone     RegistrationState = "NONE"
	RegistrationPending  RegistrationState = "PENDING"
	RegistrationApproved RegistrationState = "APPROVED"
	RegistrationRejected RegistrationState = "REJECTED"
)

// Decision 管理员的审批决定
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// PendingRegistration 等待管理员审批的注册请求
type PendingRegistration struct {
	SenderID     string    `json:"sender_id"`
	DisplayName  string    `json:"display_name"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Resolution 注册请求的终态记录
type Resolution struct {
	SenderID    string            `json:"sender_id"`
	DisplayName string            `json:"display_name"`
	State       RegistrationState `json:"state"`
	DecidedBy   string            `json:"decided_by"`
	DecidedAt   time.Time         `json:"decided_at"`
	// Registered 审批后管理员已通过 /cadastrar 写入学校
	Registered bool `json:"registered,omitempty"`
}
