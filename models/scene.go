package models

import "time"

const (
	MediaTypeVideo    = "video"
	MediaTypeAudio    = "audio"
	MediaTypeSubtitle = "subtitle"
)

// Scene 由剧本生成阶段一次性写入；重新生成是整行替换，不做原地修改
type Scene struct {
	ID         string    `json:"id"`
	ProjectId  string    `json:"projectId"`
	SceneIndex int       `json:"sceneIndex"`
	Prompt     string    `json:"prompt"`
	Duration   int       `json:"duration"` // 秒
	Subtitle   string    `json:"subtitle"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (Scene) TableName() string {
	return "scene"
}

// MediaFile 各阶段成功后追加。视频文件按 (project_id, type, scene_index)
// 唯一键去重，同一场景重复写入只会覆盖 url
type MediaFile struct {
	ID         string    `json:"id"`
	ProjectId  string    `json:"projectId"`
	Type       string    `json:"type"`
	Url        string    `json:"url"`
	Duration   int       `json:"duration,omitempty"`
	SceneIndex *int      `json:"sceneIndex,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (MediaFile) TableName() string {
	return "media_file"
}

type Subtitle struct {
	ID         string `json:"id"`
	ProjectId  string `json:"projectId"`
	SceneIndex int    `json:"sceneIndex"`
	Text       string `json:"text"`
	StartTime  int    `json:"startTime"` // 秒
	EndTime    int    `json:"endTime"`
}

func (Subtitle) TableName() string {
	return "subtitle"
}
