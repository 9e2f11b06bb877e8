package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"BriefToVideo-server/models"

	"github.com/hibiken/asynq"
)

// 重试退避：初始 2s，每次翻倍
const retryBaseDelay = 2 * time.Second

func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := retryBaseDelay
	for i := 1; i < n; i++ {
		d *= 2
	}
	return d
}

// Scheduler 消费五条阶段队列，把消息派给 Pipeline 的各阶段处理器
type Scheduler struct {
	srv      *asynq.Server
	pipeline *Pipeline
}

func NewScheduler(addr, password string, concurrency int, p *Pipeline) *Scheduler {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     addr,
			Password: password,
		},
		asynq.Config{
			Concurrency: concurrency,
			// 视频队列要并行跑多个场景，权重最高
			Queues: map[string]int{
				models.StageVideo:    5,
				models.StageScript:   1,
				models.StageVoice:    1,
				models.StageMusic:    1,
				models.StageAssembly: 1,
			},
			RetryDelayFunc: retryDelay,
		},
	)
	return &Scheduler{srv: srv, pipeline: p}
}

// Start 启动消费者（异步）
func (s *Scheduler) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(models.StageScript, s.handle(models.StageScript, s.pipeline.HandleScript))
	mux.HandleFunc(models.StageVideo, s.handle(models.StageVideo, s.pipeline.HandleVideo))
	mux.HandleFunc(models.StageVoice, s.handle(models.StageVoice, s.pipeline.HandleVoice))
	mux.HandleFunc(models.StageMusic, s.handle(models.StageMusic, s.pipeline.HandleMusic))
	mux.HandleFunc(models.StageAssembly, s.handle(models.StageAssembly, s.pipeline.HandleAssembly))

	log.Printf("Starting stage scheduler...")
	go func() {
		if err := s.srv.Run(mux); err != nil {
			log.Fatalf("could not run scheduler: %v", err)
		}
	}()
}

func (s *Scheduler) Shutdown() {
	s.srv.Shutdown()
}

// handle 统一包装：取任务记录、标 processing、跑阶段处理器，
// 失败时把错误写回记录；重试耗尽或输入非法时落为终态 failed
func (s *Scheduler) handle(stage string, fn func(ctx context.Context, task *models.Task) error) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload TaskPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
		}

		task, err := s.pipeline.Store.GetTask(payload.ProjectID, payload.TaskID)
		if err != nil {
			return fmt.Errorf("task not found: %v", err)
		}
		// at-least-once 投递下的重复消息：记录已终态就直接确认
		if models.IsTerminalStatus(task.Status) {
			log.Printf("Task %s already %s, skipping", task.ID, task.Status)
			return nil
		}

		log.Printf("Processing Task: %s | Stage: %s", task.ID, stage)
		if err := s.pipeline.Store.UpdateTask(task.ProjectId, task.ID, models.TaskStatusProcessing, task.Progress, nil, ""); err != nil {
			log.Printf("UpdateTask processing failed: %v", err)
		}

		err = fn(ctx, &task)
		if err == nil {
			log.Printf("Task %s completed successfully", task.ID)
			return nil
		}
		log.Printf("任务执行失败 task=%s stage=%s: %v", task.ID, stage, err)

		// 输入非法不重试，直接终态
		if IsValidationError(err) {
			s.failTask(&task, stage, err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			// 重试耗尽，落终态；下游扇入/扇出就此停住，
			// 等外部重新发起 regenerate
			s.failTask(&task, stage, err)
		} else {
			// 错误信息先写回记录，状态保持 processing 等下一次重试
			if uerr := s.pipeline.Store.UpdateTask(task.ProjectId, task.ID, models.TaskStatusProcessing, task.Progress, nil, err.Error()); uerr != nil {
				log.Printf("persist task error failed: %v", uerr)
			}
		}
		return err
	}
}

func (s *Scheduler) failTask(task *models.Task, stage string, cause error) {
	if err := s.pipeline.Store.UpdateTask(task.ProjectId, task.ID, models.TaskStatusFailed, task.Progress, nil, cause.Error()); err != nil {
		log.Printf("mark task failed error: %v", err)
	}
	s.pipeline.Broadcaster.Publish(task.ProjectId, stage, 0, fmt.Sprintf("Error: %v", cause))
}
