package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"BriefToVideo-server/models"
)

// 混音和成片合成交给独立的 ffmpeg worker 服务

type MusicOverlay interface {
	Apply(ctx context.Context, projectID, musicURL string) (string, error)
}

type Assembler interface {
	Assemble(ctx context.Context, detail models.ProjectDetail) (string, error)
}

type MediaWorkerClient struct {
	Addr string
	HTTP *http.Client
}

func NewMediaWorkerClient(addr string) *MediaWorkerClient {
	return &MediaWorkerClient{
		Addr: addr,
		HTTP: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *MediaWorkerClient) post(ctx context.Context, path string, reqBody interface{}, respData interface{}) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request failed: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Addr+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("worker status code: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(respData)
}

// Apply 把背景音乐叠到配音轨上，返回混音后的音频地址
func (c *MediaWorkerClient) Apply(ctx context.Context, projectID, musicURL string) (string, error) {
	var respData struct {
		AudioUrl string `json:"audio_url"`
	}
	reqBody := map[string]string{
		"project_id": projectID,
		"music_url":  musicURL,
	}
	if err := c.post(ctx, "/v1/music/overlay", reqBody, &respData); err != nil {
		return "", &GenerationError{Stage: models.StageMusic, Err: err}
	}
	if respData.AudioUrl == "" {
		return "", &GenerationError{Stage: models.StageMusic, Err: fmt.Errorf("response missing 'audio_url'")}
	}
	return respData.AudioUrl, nil
}

// Assemble 把全部场景视频、配音和字幕合成成片
func (c *MediaWorkerClient) Assemble(ctx context.Context, detail models.ProjectDetail) (string, error) {
	var respData struct {
		VideoUrl string `json:"video_url"`
	}
	if err := c.post(ctx, "/v1/assemble", detail, &respData); err != nil {
		return "", &GenerationError{Stage: models.StageAssembly, Err: err}
	}
	if respData.VideoUrl == "" {
		return "", &GenerationError{Stage: models.StageAssembly, Err: fmt.Errorf("response missing 'video_url'")}
	}
	return respData.VideoUrl, nil
}
