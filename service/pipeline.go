package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"BriefToVideo-server/models"

	"github.com/google/uuid"
)

// ProjectStore 流水线对持久层的全部依赖，models.Store 是生产实现
type ProjectStore interface {
	GetProject(id string) (models.Project, error)
	GetProjectDetail(id string) (models.ProjectDetail, error)
	AdvanceStatus(id, status string) error
	SetFinalVideo(id, url string) error
	UpdateMusicURL(id, url string) error

	ReplaceScenes(projectID string, scenes []models.Scene) error
	GetScenes(projectID string) ([]models.Scene, error)
	GetScene(projectID string, sceneIndex int) (models.Scene, error)
	UpdateScenePrompt(projectID string, sceneIndex int, prompt string) error

	UpsertMediaFile(mf models.MediaFile) error
	DeleteSceneVideo(projectID string, sceneIndex int) error
	UpsertSubtitle(sub models.Subtitle) error

	CreateTask(t *models.Task) error
	GetTask(projectID, taskID string) (models.Task, error)
	UpdateTask(projectID, taskID, status string, progress int, result *models.TaskResult, errMsg string) error
}

// Pipeline 五个阶段的处理器。所有依赖在构造时注入，没有全局状态
type Pipeline struct {
	Store       ProjectStore
	Queue       Submitter
	Broadcaster Broadcaster
	Counter     SceneCounter

	Script    ScriptGenerator
	Video     VideoGenerator
	Voice     VoiceSynthesizer
	Music     MusicOverlay
	Assembler Assembler
	Media     MediaStorage

	PollInterval    time.Duration
	PollMaxAttempts int
}

// ============================================================================
// 阶段 1：剧本生成 + 按场景扇出
// ============================================================================

func (p *Pipeline) HandleScript(ctx context.Context, task *models.Task) error {
	projectID := task.ProjectId
	p.Broadcaster.Publish(projectID, models.StageScript, 10, "Generating script...")

	project, err := p.Store.GetProject(projectID)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("project %s not found: %v", projectID, err)}
	}

	drafts, err := p.Script.Generate(ctx, project.Parameters)
	if err != nil {
		return err
	}

	scenes := make([]models.Scene, 0, len(drafts))
	for i, d := range drafts {
		duration := d.Duration
		if duration <= 0 {
			duration = 5
		}
		scenes = append(scenes, models.Scene{
			ID:         uuid.NewString(),
			ProjectId:  projectID,
			SceneIndex: i,
			Prompt:     d.Prompt,
			Duration:   duration,
			Subtitle:   d.Subtitle,
		})
	}
	if err := p.Store.ReplaceScenes(projectID, scenes); err != nil {
		return fmt.Errorf("save scenes failed: %w", err)
	}
	if err := p.Store.AdvanceStatus(projectID, models.ProjectStatusGenerating); err != nil {
		return fmt.Errorf("advance status failed: %w", err)
	}

	// 栅栏计数必须在扇出之前置好，否则先完成的场景会把计数减穿
	if err := p.Counter.Reset(ctx, projectID, len(scenes)); err != nil {
		return fmt.Errorf("reset scene counter failed: %w", err)
	}

	// 无条件扇出：每个场景一个视频任务，不跳过也不去重
	for _, sc := range scenes {
		idx := sc.SceneIndex
		if _, err := p.Queue.Submit(models.StageVideo, projectID, &idx, fmt.Sprintf("Scene %d video queued", idx+1)); err != nil {
			return fmt.Errorf("submit video job for scene %d failed: %w", idx, err)
		}
	}

	if err := p.Store.UpdateTask(projectID, task.ID, models.TaskStatusCompleted, 100, &models.TaskResult{SceneCount: len(scenes)}, ""); err != nil {
		return err
	}
	p.Broadcaster.Publish(projectID, models.StageScript, 100, "Script generated")
	return nil
}

// ============================================================================
// 阶段 2：场景视频生成（Start + 轮询）+ 扇入栅栏
// ============================================================================

func (p *Pipeline) HandleVideo(ctx context.Context, task *models.Task) error {
	projectID := task.ProjectId
	if task.SceneIndex == nil {
		return &ValidationError{Reason: "video task missing scene index"}
	}
	sceneIndex := *task.SceneIndex

	scene, err := p.Store.GetScene(projectID, sceneIndex)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("scene %d not found: %v", sceneIndex, err)}
	}
	project, err := p.Store.GetProject(projectID)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("project %s not found: %v", projectID, err)}
	}
	params := project.Parameters
	aspectRatio := params.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}
	videoType := params.VideoType
	if videoType == "" {
		videoType = "product"
	}
	style := params.Style
	if style == "" {
		style = "modern"
	}

	p.Broadcaster.Publish(projectID, models.StageVideo, 0, fmt.Sprintf("Generating scene %d...", sceneIndex+1))

	generationID, err := p.Video.Start(ctx, scene.Prompt, aspectRatio, videoType, style)
	if err != nil {
		return err
	}

	videoUrl, err := p.pollVideo(ctx, projectID, sceneIndex, generationID)
	if err != nil {
		return err
	}

	// 媒体文件和字幕按 scene_index 去重写入，重生成竞态不会留重复条目
	idx := sceneIndex
	if err := p.Store.UpsertMediaFile(models.MediaFile{
		ID:         uuid.NewString(),
		ProjectId:  projectID,
		Type:       models.MediaTypeVideo,
		Url:        videoUrl,
		Duration:   scene.Duration,
		SceneIndex: &idx,
	}); err != nil {
		return fmt.Errorf("save media file failed: %w", err)
	}

	startTime, err := p.sceneStartTime(projectID, sceneIndex)
	if err != nil {
		return fmt.Errorf("compute subtitle timing failed: %w", err)
	}
	if err := p.Store.UpsertSubtitle(models.Subtitle{
		ID:         uuid.NewString(),
		ProjectId:  projectID,
		SceneIndex: sceneIndex,
		Text:       scene.Subtitle,
		StartTime:  startTime,
		EndTime:    startTime + scene.Duration,
	}); err != nil {
		return fmt.Errorf("save subtitle failed: %w", err)
	}

	if err := p.Store.UpdateTask(projectID, task.ID, models.TaskStatusCompleted, 100, &models.TaskResult{VideoUrl: videoUrl}, ""); err != nil {
		return err
	}
	p.Broadcaster.Publish(projectID, models.StageVideo, 100, fmt.Sprintf("Scene %d completed", sceneIndex+1))

	// 扇入栅栏：原子减一，减到恰好 0 的这次完成是唯一的配音触发者。
	// 重生成补的任务会把计数减成负数，永远不会再等于 0
	remaining, err := p.Counter.Decrement(ctx, projectID)
	if err != nil {
		log.Printf("场景计数递减失败 project=%s: %v", projectID, err)
		return nil
	}
	if remaining == 0 {
		if _, err := p.Queue.Submit(models.StageVoice, projectID, nil, "All scenes done, voice synthesis queued"); err != nil {
			log.Printf("配音任务入队失败 project=%s: %v", projectID, err)
		}
	}
	return nil
}

// pollVideo 定时轮询直到完成或失败，超过次数上限按超时处理。
// 等待走 ticker/ctx 的 select，不做阻塞 sleep
func (p *Pipeline) pollVideo(ctx context.Context, projectID string, sceneIndex int, generationID string) (string, error) {
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			attempts++
			if attempts > p.PollMaxAttempts {
				return "", &TimeoutError{Stage: models.StageVideo, Attempts: p.PollMaxAttempts}
			}
			st, err := p.Video.Poll(ctx, generationID)
			if err != nil {
				// 网络抖动继续轮询，次数上限兜底
				log.Printf("轮询失败(重试中) generation=%s: %v", generationID, err)
				continue
			}

			p.Broadcaster.Publish(projectID, models.StageVideo, st.Progress, fmt.Sprintf("Rendering scene %d...", sceneIndex+1))

			switch st.Status {
			case VideoStatusCompleted:
				if st.VideoUrl == "" {
					continue
				}
				return st.VideoUrl, nil
			case VideoStatusFailed:
				return "", &GenerationError{Stage: models.StageVideo, Err: fmt.Errorf("generation %s reported failure", generationID)}
			}
		}
	}
}

// sceneStartTime 场景字幕的起始时间 = 前面所有场景时长之和
func (p *Pipeline) sceneStartTime(projectID string, sceneIndex int) (int, error) {
	scenes, err := p.Store.GetScenes(projectID)
	if err != nil {
		return 0, err
	}
	start := 0
	for _, sc := range scenes {
		if sc.SceneIndex < sceneIndex {
			start += sc.Duration
		}
	}
	return start, nil
}

// ============================================================================
// 阶段 3：配音合成
// ============================================================================

func (p *Pipeline) HandleVoice(ctx context.Context, task *models.Task) error {
	projectID := task.ProjectId
	p.Broadcaster.Publish(projectID, models.StageVoice, 0, "Synthesizing voice...")

	project, err := p.Store.GetProject(projectID)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("project %s not found: %v", projectID, err)}
	}
	scenes, err := p.Store.GetScenes(projectID)
	if err != nil {
		return fmt.Errorf("load scenes failed: %w", err)
	}
	if len(scenes) == 0 {
		return &ValidationError{Reason: "project has no scenes"}
	}

	// 整片旁白一次合成
	texts := make([]string, 0, len(scenes))
	for _, sc := range scenes {
		texts = append(texts, sc.Subtitle)
	}
	fullText := strings.Join(texts, " ")

	voiceID := project.Parameters.Voice.VoiceID
	if voiceID == "" {
		voiceID = "default"
	}
	language := project.Parameters.Voice.Language
	if language == "" {
		language = "en"
	}

	audio, err := p.Voice.Synthesize(ctx, fullText, voiceID, language)
	if err != nil {
		return err
	}

	audioUrl, err := p.Media.SaveAudio(ctx, projectID, audio)
	if err != nil {
		return fmt.Errorf("save audio failed: %w", err)
	}

	if err := p.Store.UpsertMediaFile(models.MediaFile{
		ID:        uuid.NewString(),
		ProjectId: projectID,
		Type:      models.MediaTypeAudio,
		Url:       audioUrl,
	}); err != nil {
		return fmt.Errorf("save media file failed: %w", err)
	}

	if err := p.Store.UpdateTask(projectID, task.ID, models.TaskStatusCompleted, 100, &models.TaskResult{AudioUrl: audioUrl}, ""); err != nil {
		return err
	}
	p.Broadcaster.Publish(projectID, models.StageVoice, 100, "Voice synthesis completed")

	if _, err := p.Queue.Submit(models.StageMusic, projectID, nil, "Music overlay queued"); err != nil {
		log.Printf("配乐任务入队失败 project=%s: %v", projectID, err)
	}
	return nil
}

// ============================================================================
// 阶段 4：配乐叠加
// ============================================================================

func (p *Pipeline) HandleMusic(ctx context.Context, task *models.Task) error {
	projectID := task.ProjectId
	p.Broadcaster.Publish(projectID, models.StageMusic, 0, "Adding music...")

	project, err := p.Store.GetProject(projectID)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("project %s not found: %v", projectID, err)}
	}

	// 没配背景音乐就直接完成
	if musicURL := project.Parameters.Music.URL; musicURL != "" {
		finalAudioUrl, err := p.Music.Apply(ctx, projectID, musicURL)
		if err != nil {
			return err
		}
		if err := p.Store.UpdateMusicURL(projectID, finalAudioUrl); err != nil {
			return fmt.Errorf("save mixed audio url failed: %w", err)
		}
	}

	if err := p.Store.UpdateTask(projectID, task.ID, models.TaskStatusCompleted, 100, nil, ""); err != nil {
		return err
	}
	p.Broadcaster.Publish(projectID, models.StageMusic, 100, "Music added")

	if _, err := p.Queue.Submit(models.StageAssembly, projectID, nil, "Final assembly queued"); err != nil {
		log.Printf("成片任务入队失败 project=%s: %v", projectID, err)
	}
	return nil
}

// ============================================================================
// 阶段 5：成片合成
// ============================================================================

func (p *Pipeline) HandleAssembly(ctx context.Context, task *models.Task) error {
	projectID := task.ProjectId
	p.Broadcaster.Publish(projectID, models.StageAssembly, 0, "Assembling final video...")

	detail, err := p.Store.GetProjectDetail(projectID)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("project %s not found: %v", projectID, err)}
	}

	finalVideoUrl, err := p.Assembler.Assemble(ctx, detail)
	if err != nil {
		return err
	}

	// final_video_url 只在 assembly 完成时写入，同时把状态推到 ready
	if err := p.Store.SetFinalVideo(projectID, finalVideoUrl); err != nil {
		return fmt.Errorf("save final video failed: %w", err)
	}

	if err := p.Store.UpdateTask(projectID, task.ID, models.TaskStatusCompleted, 100, &models.TaskResult{FinalVideoUrl: finalVideoUrl}, ""); err != nil {
		return err
	}
	p.Broadcaster.Publish(projectID, models.StageAssembly, 100, "Video ready!")
	return nil
}

// ============================================================================
// 场景重生成（由 API 触发，流水线执行）
// ============================================================================

// RegenerateScene 删掉该场景旧的视频条目后重新提交视频任务。
// 不重置栅栏计数——只有任务完成事件会触发扇入检查
func (p *Pipeline) RegenerateScene(projectID string, sceneIndex int, prompt string) (*models.Task, error) {
	if _, err := p.Store.GetScene(projectID, sceneIndex); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("scene %d not found: %v", sceneIndex, err)}
	}
	if err := p.Store.DeleteSceneVideo(projectID, sceneIndex); err != nil {
		return nil, fmt.Errorf("remove old scene video failed: %w", err)
	}
	if prompt != "" {
		if err := p.Store.UpdateScenePrompt(projectID, sceneIndex, prompt); err != nil {
			return nil, fmt.Errorf("update scene prompt failed: %w", err)
		}
	}
	idx := sceneIndex
	return p.Queue.Submit(models.StageVideo, projectID, &idx, fmt.Sprintf("Scene %d regeneration queued", sceneIndex+1))
}
