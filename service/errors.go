package service

import (
	"errors"
	"fmt"
)

// GenerationError 外部能力调用失败，由调度器按退避策略重试
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// TimeoutError 视频轮询超过次数上限
type TimeoutError struct {
	Stage    string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %d poll attempts", e.Stage, e.Attempts)
}

// ValidationError 阶段输入非法，直接失败不重试
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid stage input: " + e.Reason
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
