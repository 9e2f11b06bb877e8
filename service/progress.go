package service

import (
	"sync"
	"time"

	"BriefToVideo-server/models"
)

// 各阶段在全局进度里占的区间
var stageSpans = map[string][2]float64{
	models.StageScript:   {0, 20},
	models.StageVideo:    {20, 80},
	models.StageVoice:    {80, 90},
	models.StageMusic:    {90, 95},
	models.StageAssembly: {95, 100},
}

// GlobalProgress 把阶段内 0-100 的进度折算成全局百分比
func GlobalProgress(stage string, local float64) float64 {
	span, ok := stageSpans[stage]
	if !ok {
		return local
	}
	if local < 0 {
		local = 0
	}
	if local > 100 {
		local = 100
	}
	return span[0] + local/100*(span[1]-span[0])
}

// ProgressEvent 推送给订阅者的事件
type ProgressEvent struct {
	StageType string    `json:"stageType"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster 由各阶段处理器在构造时注入，不走全局变量
type Broadcaster interface {
	Publish(projectID, stage string, localProgress float64, message string)
}

// Hub 按项目分发进度事件。投递是尽力而为：没有订阅者就丢弃，
// 订阅者消费不过来也丢弃，不会阻塞流水线。断线重连的客户端
// 以数据库里的 task/project 状态为准，事件流不回放。
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan ProgressEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan ProgressEvent]struct{})}
}

// Subscribe 返回带缓冲的事件通道，用完必须 Unsubscribe
func (h *Hub) Subscribe(projectID string) chan ProgressEvent {
	ch := make(chan ProgressEvent, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[projectID] == nil {
		h.subs[projectID] = make(map[chan ProgressEvent]struct{})
	}
	h.subs[projectID][ch] = struct{}{}
	return ch
}

func (h *Hub) Unsubscribe(projectID string, ch chan ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[projectID]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(h.subs, projectID)
		}
	}
}

func (h *Hub) Publish(projectID, stage string, localProgress float64, message string) {
	ev := ProgressEvent{
		StageType: stage,
		Progress:  GlobalProgress(stage, localProgress),
		Message:   message,
		Timestamp: time.Now(),
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[projectID] {
		select {
		case ch <- ev:
		default:
			// 订阅者太慢，丢弃本条
		}
	}
}
