package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 任务状态（completed / failed 为终态，终态后不允许再修改）
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"

	// 五个流水线阶段，同时也是各自队列的名字
	StageScript   = "script_generation"
	StageVideo    = "video_generation"
	StageVoice    = "voice_synthesis"
	StageMusic    = "music_overlay"
	StageAssembly = "final_assembly"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskFinalized = errors.New("task already in terminal state")
)

// Stages 按流水线顺序排列的全部阶段
var Stages = []string{StageScript, StageVideo, StageVoice, StageMusic, StageAssembly}

func IsTerminalStatus(status string) bool {
	return status == TaskStatusCompleted || status == TaskStatusFailed
}

func IsValidStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// TaskResult 各阶段结果的最小定位信息
type TaskResult struct {
	VideoUrl      string `json:"video_url,omitempty"`
	AudioUrl      string `json:"audio_url,omitempty"`
	FinalVideoUrl string `json:"final_video_url,omitempty"`
	SceneCount    int    `json:"scene_count,omitempty"`
}

func (r TaskResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *TaskResult) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, r)
}

type Task struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)" json:"taskId"`
	ProjectId   string     `json:"projectId"`
	Type        string     `json:"stageType"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	SceneIndex  *int       `json:"sceneIndex,omitempty"`
	Result      TaskResult `gorm:"type:json" json:"result"`
	Error       string     `json:"error"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (Task) TableName() string {
	return "task"
}

// ApplyStatusChange 在内存中应用一次状态更新。规则：
//   - 终态记录拒绝任何修改，返回 ErrTaskFinalized
//   - progress 原样接受（阶段内允许回退修正）
//   - completed_at 只在首次进入终态时打一次时间戳
//
// SQL 写入方和测试用的内存实现共用这一份规则。
func ApplyStatusChange(t *Task, status string, progress int, result *TaskResult, errMsg string) error {
	if IsTerminalStatus(t.Status) {
		return ErrTaskFinalized
	}
	if status != "" {
		t.Status = status
	}
	t.Progress = progress
	if result != nil {
		t.Result = *result
	}
	if errMsg != "" {
		t.Error = errMsg
	}
	t.UpdatedAt = time.Now()
	if IsTerminalStatus(t.Status) && t.CompletedAt == nil {
		now := time.Now()
		t.CompletedAt = &now
	}
	return nil
}
