package models

import "errors"

var (
	// ErrStoreUnavailable 表格存储不可用（可恢复）
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	// ErrAlreadyProcessed 注册请求已处理或不存在
	ErrAlreadyProcessed = errors.New("already processed")
	ErrMalformedInput   = errors.New("malformed input")
	ErrDuplicateUnit    = errors.New("duplicate unit")
	ErrDeliveryFailed   = errors.New("delivery failed")
)
