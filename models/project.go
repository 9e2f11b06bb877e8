package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// 项目状态（只允许按此顺序向前推进）
const (
	ProjectStatusDraft      = "draft"      // 项目已创建，尚未生成
	ProjectStatusGenerating = "generating" // 流水线正在生成
	ProjectStatusEditing    = "editing"    // 用户在编辑字幕等
	ProjectStatusReady      = "ready"      // 成片已生成，可播放/导出
	ProjectStatusCompleted  = "completed"  // 项目已归档
)

var projectStatusRank = map[string]int{
	ProjectStatusDraft:      0,
	ProjectStatusGenerating: 1,
	ProjectStatusEditing:    2,
	ProjectStatusReady:      3,
	ProjectStatusCompleted:  4,
}

// StatusRank 返回状态在生命周期中的序号，未知状态返回 -1
func StatusRank(status string) int {
	if r, ok := projectStatusRank[status]; ok {
		return r
	}
	return -1
}

// CanAdvanceStatus 仅允许向前推进，禁止任何阶段把状态改回更早的值
func CanAdvanceStatus(from, to string) bool {
	fr, tr := StatusRank(from), StatusRank(to)
	return fr >= 0 && tr >= 0 && tr > fr
}

// lowerStatuses 返回 rank 低于 to 的所有状态，用于 UPDATE ... WHERE status IN (...)
func lowerStatuses(to string) []string {
	tr := StatusRank(to)
	var res []string
	for s, r := range projectStatusRank {
		if r < tr {
			res = append(res, s)
		}
	}
	return res
}

type VoiceParams struct {
	Provider string `json:"provider,omitempty"`
	VoiceID  string `json:"voiceId,omitempty"`
	Language string `json:"language,omitempty"`
}

type MusicParams struct {
	Genre     string `json:"genre,omitempty"`
	Intensity string `json:"intensity,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Parameters 生成参数，整体存为 project 表的 JSON 列
type Parameters struct {
	VideoType   string      `json:"videoType"`
	Text        string      `json:"text,omitempty"`
	Style       string      `json:"style,omitempty"`
	Voice       VoiceParams `json:"voice,omitempty"`
	Music       MusicParams `json:"music,omitempty"`
	Duration    int         `json:"duration,omitempty"` // 秒
	AspectRatio string      `json:"aspectRatio,omitempty"`
}

func (p Parameters) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *Parameters) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, p)
}

type Project struct {
	ID            string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserId        string     `json:"userId"`
	Name          string     `json:"name"`
	Template      string     `json:"template"`
	Parameters    Parameters `gorm:"type:json" json:"parameters"`
	Status        string     `json:"status"`
	FinalVideoUrl string     `json:"finalVideoUrl"`
	ThumbnailUrl  string     `json:"thumbnailUrl"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}

// ProjectDetail 项目聚合视图：project 行加上子表内容
type ProjectDetail struct {
	Project    Project     `json:"project"`
	Scenes     []Scene     `json:"scenes"`
	MediaFiles []MediaFile `json:"mediaFiles"`
	Subtitles  []Subtitle  `json:"subtitles"`
	Tasks      []Task      `json:"tasks"`
}
