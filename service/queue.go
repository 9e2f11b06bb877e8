package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"BriefToVideo-server/models"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskPayload 队列消息只带定位信息，任务内容以 task 表为准
type TaskPayload struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id"`
}

// Submitter 各阶段处理器用它把下一阶段任务送进队列
type Submitter interface {
	Submit(stage, projectID string, sceneIndex *int, message string) (*models.Task, error)
}

// Queue asynq 客户端封装。五个阶段各有一条独立队列，
// 队列名就是阶段名
type Queue struct {
	client *asynq.Client
	store  ProjectStore
}

func NewQueue(addr, password string, store ProjectStore) *Queue {
	return &Queue{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     addr,
			Password: password,
		}),
		store: store,
	}
}

// Submit 先建 TaskRecord（pending），再入队。入队失败时把刚建的
// 记录标为 failed 并返回错误，不会留下没有记录的任务
func (q *Queue) Submit(stage, projectID string, sceneIndex *int, message string) (*models.Task, error) {
	if !models.IsValidStage(stage) {
		return nil, fmt.Errorf("unknown stage: %s", stage)
	}

	task := &models.Task{
		ID:         uuid.NewString(),
		ProjectId:  projectID,
		Type:       stage,
		Status:     models.TaskStatusPending,
		Progress:   0,
		Message:    message,
		SceneIndex: sceneIndex,
	}
	if err := q.store.CreateTask(task); err != nil {
		return nil, fmt.Errorf("create task record failed: %w", err)
	}

	payload, err := json.Marshal(TaskPayload{TaskID: task.ID, ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}

	info, err := q.client.Enqueue(asynq.NewTask(stage, payload),
		asynq.Queue(stage),
		asynq.MaxRetry(3),                // 失败重试 3 次
		asynq.Timeout(30*time.Minute),    // 视频生成较慢，超时放宽
		asynq.Retention(24*time.Hour),    // 任务结果在 Redis 保留时间
	)
	if err != nil {
		_ = q.store.UpdateTask(projectID, task.ID, models.TaskStatusFailed, 0, nil, fmt.Sprintf("enqueue failed: %v", err))
		return nil, fmt.Errorf("enqueue failed: %w", err)
	}

	log.Printf("[Queue] Task Enqueued: stage=%s, task=%s, queue_id=%s", stage, task.ID, info.ID)
	return task, nil
}
