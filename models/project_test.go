package models

import "testing"

func TestCanAdvanceStatus(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{ProjectStatusDraft, ProjectStatusGenerating, true},
		{ProjectStatusDraft, ProjectStatusReady, true},
		{ProjectStatusGenerating, ProjectStatusEditing, true},
		{ProjectStatusGenerating, ProjectStatusReady, true},
		{ProjectStatusEditing, ProjectStatusReady, true},
		{ProjectStatusReady, ProjectStatusCompleted, true},
		// 不允许原地或回退
		{ProjectStatusGenerating, ProjectStatusGenerating, false},
		{ProjectStatusReady, ProjectStatusGenerating, false},
		{ProjectStatusCompleted, ProjectStatusDraft, false},
		// 未知状态两个方向都拒绝
		{"bogus", ProjectStatusReady, false},
		{ProjectStatusDraft, "bogus", false},
	}
	for _, tt := range tests {
		if got := CanAdvanceStatus(tt.from, tt.to); got != tt.want {
			t.Errorf("CanAdvanceStatus(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusRankOrdering(t *testing.T) {
	order := []string{
		ProjectStatusDraft,
		ProjectStatusGenerating,
		ProjectStatusEditing,
		ProjectStatusReady,
		ProjectStatusCompleted,
	}
	for i := 1; i < len(order); i++ {
		if StatusRank(order[i-1]) >= StatusRank(order[i]) {
			t.Errorf("rank(%s) >= rank(%s)", order[i-1], order[i])
		}
	}
	if StatusRank("nope") != -1 {
		t.Error("unknown status should rank -1")
	}
}

func TestLowerStatuses(t *testing.T) {
	lower := lowerStatuses(ProjectStatusEditing)
	want := map[string]bool{ProjectStatusDraft: true, ProjectStatusGenerating: true}
	if len(lower) != len(want) {
		t.Fatalf("lowerStatuses(editing) = %v", lower)
	}
	for _, s := range lower {
		if !want[s] {
			t.Errorf("unexpected status %q below editing", s)
		}
	}
}
