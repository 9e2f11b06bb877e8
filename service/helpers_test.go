package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"BriefToVideo-server/models"

	"github.com/google/uuid"
)

// 测试用内存实现：ProjectStore / Submitter / Broadcaster / SceneCounter
// 和各外部能力客户端的假实现

type memStore struct {
	mu         sync.Mutex
	projects   map[string]models.Project
	scenes     map[string][]models.Scene
	mediaFiles map[string][]models.MediaFile
	subtitles  map[string][]models.Subtitle
	tasks      map[string]models.Task
}

func newMemStore() *memStore {
	return &memStore{
		projects:   make(map[string]models.Project),
		scenes:     make(map[string][]models.Scene),
		mediaFiles: make(map[string][]models.MediaFile),
		subtitles:  make(map[string][]models.Subtitle),
		tasks:      make(map[string]models.Task),
	}
}

func (s *memStore) putProject(p models.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

func (s *memStore) GetProject(id string) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return p, fmt.Errorf("project %s not found", id)
	}
	return p, nil
}

func (s *memStore) GetProjectDetail(id string) (models.ProjectDetail, error) {
	p, err := s.GetProject(id)
	if err != nil {
		return models.ProjectDetail{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := models.ProjectDetail{
		Project:    p,
		Scenes:     append([]models.Scene(nil), s.scenes[id]...),
		MediaFiles: append([]models.MediaFile(nil), s.mediaFiles[id]...),
		Subtitles:  append([]models.Subtitle(nil), s.subtitles[id]...),
	}
	for _, t := range s.tasks {
		if t.ProjectId == id {
			d.Tasks = append(d.Tasks, t)
		}
	}
	return d, nil
}

func (s *memStore) AdvanceStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("project %s not found", id)
	}
	if models.CanAdvanceStatus(p.Status, status) {
		p.Status = status
		s.projects[id] = p
	}
	return nil
}

func (s *memStore) SetFinalVideo(id, url string) error {
	s.mu.Lock()
	p, ok := s.projects[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("project %s not found", id)
	}
	p.FinalVideoUrl = url
	s.projects[id] = p
	s.mu.Unlock()
	return s.AdvanceStatus(id, models.ProjectStatusReady)
}

func (s *memStore) UpdateMusicURL(id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("project %s not found", id)
	}
	p.Parameters.Music.URL = url
	s.projects[id] = p
	return nil
}

func (s *memStore) ReplaceScenes(projectID string, scenes []models.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes[projectID] = append([]models.Scene(nil), scenes...)
	return nil
}

func (s *memStore) GetScenes(projectID string) ([]models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Scene(nil), s.scenes[projectID]...), nil
}

func (s *memStore) GetScene(projectID string, sceneIndex int) (models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scenes[projectID] {
		if sc.SceneIndex == sceneIndex {
			return sc, nil
		}
	}
	return models.Scene{}, fmt.Errorf("scene %d not found", sceneIndex)
}

func (s *memStore) UpdateScenePrompt(projectID string, sceneIndex int, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sc := range s.scenes[projectID] {
		if sc.SceneIndex == sceneIndex {
			s.scenes[projectID][i].Prompt = prompt
			return nil
		}
	}
	return fmt.Errorf("scene %d not found", sceneIndex)
}

// UpsertMediaFile 与 SQL 实现同语义：(project, type, scene_index) 去重
func (s *memStore) UpsertMediaFile(mf models.MediaFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.mediaFiles[mf.ProjectId]
	for i, f := range files {
		if f.Type == mf.Type && sameIndex(f.SceneIndex, mf.SceneIndex) && mf.SceneIndex != nil {
			files[i].Url = mf.Url
			files[i].Duration = mf.Duration
			return nil
		}
	}
	s.mediaFiles[mf.ProjectId] = append(files, mf)
	return nil
}

func sameIndex(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *memStore) DeleteSceneVideo(projectID string, sceneIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.mediaFiles[projectID][:0]
	for _, f := range s.mediaFiles[projectID] {
		if f.Type == models.MediaTypeVideo && f.SceneIndex != nil && *f.SceneIndex == sceneIndex {
			continue
		}
		files = append(files, f)
	}
	s.mediaFiles[projectID] = files
	return nil
}

func (s *memStore) UpsertSubtitle(sub models.Subtitle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subtitles[sub.ProjectId]
	for i, existing := range subs {
		if existing.SceneIndex == sub.SceneIndex {
			subs[i] = sub
			return nil
		}
	}
	s.subtitles[sub.ProjectId] = append(subs, sub)
	return nil
}

func (s *memStore) CreateTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks[t.ID] = *t
	return nil
}

func (s *memStore) GetTask(projectID, taskID string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.ProjectId != projectID {
		return t, models.ErrTaskNotFound
	}
	return t, nil
}

func (s *memStore) UpdateTask(projectID, taskID, status string, progress int, result *models.TaskResult, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.ProjectId != projectID {
		return models.ErrTaskNotFound
	}
	if err := models.ApplyStatusChange(&t, status, progress, result, errMsg); err != nil {
		return err
	}
	s.tasks[taskID] = t
	return nil
}

func (s *memStore) tasksByStage(projectID, stage string) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []models.Task
	for _, t := range s.tasks {
		if t.ProjectId == projectID && t.Type == stage {
			res = append(res, t)
		}
	}
	return res
}

func (s *memStore) videoFileCount(projectID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.mediaFiles[projectID] {
		if f.Type == models.MediaTypeVideo {
			n++
		}
	}
	return n
}

// ----------------------------------------------------------------------------

// memQueue 与真实 Queue.Submit 同语义：先建记录再"入队"（append）
type memQueue struct {
	mu      sync.Mutex
	store   ProjectStore
	queue   []models.Task
	history []models.Task
}

func newMemQueue(store ProjectStore) *memQueue {
	return &memQueue{store: store}
}

func (q *memQueue) Submit(stage, projectID string, sceneIndex *int, message string) (*models.Task, error) {
	task := &models.Task{
		ID:         uuid.NewString(),
		ProjectId:  projectID,
		Type:       stage,
		Status:     models.TaskStatusPending,
		Message:    message,
		SceneIndex: sceneIndex,
	}
	if err := q.store.CreateTask(task); err != nil {
		return nil, err
	}
	q.mu.Lock()
	q.queue = append(q.queue, *task)
	q.history = append(q.history, *task)
	q.mu.Unlock()
	return task, nil
}

func (q *memQueue) pop() (models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return models.Task{}, false
	}
	t := q.queue[0]
	q.queue = q.queue[1:]
	return t, true
}

// submitted 统计该阶段历史上被提交过多少次（含已消费的）
func (q *memQueue) submitted(stage string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, t := range q.history {
		if t.Type == stage {
			n++
		}
	}
	return n
}

// ----------------------------------------------------------------------------

type memBroadcaster struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (b *memBroadcaster) Publish(projectID, stage string, localProgress float64, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ProgressEvent{
		StageType: stage,
		Progress:  GlobalProgress(stage, localProgress),
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (b *memBroadcaster) all() []ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ProgressEvent(nil), b.events...)
}

// ----------------------------------------------------------------------------

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemCounter() *memCounter {
	return &memCounter{counts: make(map[string]int64)}
}

func (c *memCounter) Reset(_ context.Context, projectID string, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[projectID] = int64(n)
	return nil
}

func (c *memCounter) Decrement(_ context.Context, projectID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[projectID]--
	return c.counts[projectID], nil
}

// ----------------------------------------------------------------------------

type fakeScript struct {
	drafts []SceneDraft
	err    error
}

func (f *fakeScript) Generate(context.Context, models.Parameters) ([]SceneDraft, error) {
	return f.drafts, f.err
}

// fakeVideo 每个 generation 按预设的状态序列应答，序列耗尽后
// 重复最后一个
type fakeVideo struct {
	mu       sync.Mutex
	statuses []VideoStatus
	started  int
	polls    map[string]int
}

func newFakeVideo(statuses ...VideoStatus) *fakeVideo {
	return &fakeVideo{statuses: statuses, polls: make(map[string]int)}
}

func (f *fakeVideo) Start(_ context.Context, prompt, aspectRatio, videoType, style string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return fmt.Sprintf("gen-%d", f.started), nil
}

func (f *fakeVideo) Poll(_ context.Context, generationID string) (VideoStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls[generationID]
	f.polls[generationID] = i + 1
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	st := f.statuses[i]
	if st.Status == VideoStatusCompleted && st.VideoUrl == "" {
		st.VideoUrl = "https://cdn.example.com/" + generationID + ".mp4"
	}
	return st, nil
}

type fakeVoice struct{}

func (fakeVoice) Synthesize(context.Context, string, string, string) ([]byte, error) {
	return []byte("mp3-bytes"), nil
}

type fakeMusic struct{ applied int }

func (f *fakeMusic) Apply(_ context.Context, projectID, musicURL string) (string, error) {
	f.applied++
	return "https://cdn.example.com/" + projectID + "-mixed.mp3", nil
}

type fakeAssembler struct{}

func (fakeAssembler) Assemble(_ context.Context, detail models.ProjectDetail) (string, error) {
	return "https://cdn.example.com/" + detail.Project.ID + "-final.mp4", nil
}

type fakeMedia struct{}

func (fakeMedia) SaveAudio(_ context.Context, projectID string, _ []byte) (string, error) {
	return "https://cdn.example.com/" + projectID + "-voice.mp3", nil
}

// ----------------------------------------------------------------------------

func newTestPipeline(store *memStore, queue *memQueue, bc *memBroadcaster, counter SceneCounter, video VideoGenerator, drafts []SceneDraft) *Pipeline {
	return &Pipeline{
		Store:           store,
		Queue:           queue,
		Broadcaster:     bc,
		Counter:         counter,
		Script:          &fakeScript{drafts: drafts},
		Video:           video,
		Voice:           fakeVoice{},
		Music:           &fakeMusic{},
		Assembler:       fakeAssembler{},
		Media:           fakeMedia{},
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 10,
	}
}

// drainQueue 顺序消费内存队列，模拟调度器派发
func drainQueue(ctx context.Context, p *Pipeline, q *memQueue) error {
	for {
		task, ok := q.pop()
		if !ok {
			return nil
		}
		var err error
		switch task.Type {
		case models.StageScript:
			err = p.HandleScript(ctx, &task)
		case models.StageVideo:
			err = p.HandleVideo(ctx, &task)
		case models.StageVoice:
			err = p.HandleVoice(ctx, &task)
		case models.StageMusic:
			err = p.HandleMusic(ctx, &task)
		case models.StageAssembly:
			err = p.HandleAssembly(ctx, &task)
		}
		if err != nil {
			return err
		}
	}
}
