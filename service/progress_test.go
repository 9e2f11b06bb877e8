package service

import (
	"testing"
	"time"

	"BriefToVideo-server/models"
)

func TestGlobalProgressMapping(t *testing.T) {
	tests := []struct {
		stage string
		local float64
		want  float64
	}{
		{models.StageScript, 0, 0},
		{models.StageScript, 50, 10},
		{models.StageScript, 100, 20},
		{models.StageVideo, 0, 20},
		{models.StageVideo, 50, 50},
		{models.StageVideo, 100, 80},
		{models.StageVoice, 0, 80},
		{models.StageVoice, 100, 90},
		{models.StageMusic, 0, 90},
		{models.StageMusic, 100, 95},
		{models.StageAssembly, 0, 95},
		{models.StageAssembly, 100, 100},
		// 越界收敛到区间内
		{models.StageVideo, -10, 20},
		{models.StageVideo, 150, 80},
		// 未知阶段原样返回
		{"unknown", 42, 42},
	}
	for _, tt := range tests {
		if got := GlobalProgress(tt.stage, tt.local); got != tt.want {
			t.Errorf("GlobalProgress(%q, %.0f) = %.1f, want %.1f", tt.stage, tt.local, got, tt.want)
		}
	}
}

func TestStageSpansCoverZeroToHundred(t *testing.T) {
	// 相邻阶段首尾相接，整体铺满 0-100
	order := []string{models.StageScript, models.StageVideo, models.StageVoice, models.StageMusic, models.StageAssembly}
	if stageSpans[order[0]][0] != 0 {
		t.Errorf("first stage starts at %.1f, want 0", stageSpans[order[0]][0])
	}
	for i := 1; i < len(order); i++ {
		prev, cur := stageSpans[order[i-1]], stageSpans[order[i]]
		if prev[1] != cur[0] {
			t.Errorf("gap between %s (ends %.1f) and %s (starts %.1f)", order[i-1], prev[1], order[i], cur[0])
		}
	}
	if stageSpans[order[len(order)-1]][1] != 100 {
		t.Errorf("last stage ends at %.1f, want 100", stageSpans[order[len(order)-1]][1])
	}
}

func TestHubPublishReachesSubscribers(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe("p1")
	other := h.Subscribe("p2")
	defer h.Unsubscribe("p2", other)

	h.Publish("p1", models.StageVideo, 50, "rendering")

	select {
	case ev := <-ch:
		if ev.StageType != models.StageVideo || ev.Progress != 50 {
			t.Errorf("event = %+v", ev)
		}
		if ev.Message != "rendering" {
			t.Errorf("message = %q", ev.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-other:
		t.Fatalf("subscriber of another project got %+v", ev)
	default:
	}

	h.Unsubscribe("p1", ch)
	if _, ok := <-ch; ok {
		t.Error("channel not closed after unsubscribe")
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe("p1")
	defer h.Unsubscribe("p1", ch)

	done := make(chan struct{})
	go func() {
		// 缓冲 16，发 50 条：满了之后直接丢弃，Publish 不能卡住
		for i := 0; i < 50; i++ {
			h.Publish("p1", models.StageVideo, float64(i), "")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if got := len(ch); got != cap(ch) {
		t.Errorf("buffered events = %d, want full buffer %d", got, cap(ch))
	}
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	h := NewHub()
	// 没有订阅者时发布应当是空操作
	h.Publish("nobody", models.StageScript, 10, "hello")
}
