package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"BriefToVideo-server/models"
)

// 外部能力接口。流水线只依赖接口，HTTP 实现在下面，测试用假实现

// SceneDraft 剧本生成返回的单个场景
type SceneDraft struct {
	SceneIndex int    `json:"sceneIndex"`
	Prompt     string `json:"prompt"`
	Duration   int    `json:"duration"`
	Subtitle   string `json:"subtitle"`
}

type ScriptGenerator interface {
	Generate(ctx context.Context, params models.Parameters) ([]SceneDraft, error)
}

// VideoStatus 一次轮询的结果
type VideoStatus struct {
	Status   string
	VideoUrl string
	Progress float64
}

const (
	VideoStatusCompleted = "completed"
	VideoStatusFailed    = "failed"
)

// VideoGenerator 异步协议：Start 拿到 generationId，之后反复 Poll
type VideoGenerator interface {
	Start(ctx context.Context, prompt, aspectRatio, videoType, style string) (string, error)
	Poll(ctx context.Context, generationID string) (VideoStatus, error)
}

type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, language string) ([]byte, error)
}

// ============================================================================
// OpenAI：剧本生成
// ============================================================================

type OpenAIScriptClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewOpenAIScriptClient(apiKey, baseURL string) *OpenAIScriptClient {
	return &OpenAIScriptClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *OpenAIScriptClient) Generate(ctx context.Context, params models.Parameters) ([]SceneDraft, error) {
	reqBody := map[string]interface{}{
		"model": "gpt-4",
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "You are a professional video scriptwriter specializing in business and marketing videos. Always return valid JSON.",
			},
			{
				"role":    "user",
				"content": BuildScriptPrompt(params),
			},
		},
		"temperature":     0.7,
		"response_format": map[string]string{"type": "json_object"},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &GenerationError{Stage: models.StageScript, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &GenerationError{Stage: models.StageScript, Err: fmt.Errorf("openai status code: %d", resp.StatusCode)}
	}

	var respData struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, &GenerationError{Stage: models.StageScript, Err: fmt.Errorf("decode response failed: %v", err)}
	}
	if len(respData.Choices) == 0 {
		return nil, &GenerationError{Stage: models.StageScript, Err: fmt.Errorf("response has no choices")}
	}

	var script struct {
		Scenes []SceneDraft `json:"scenes"`
	}
	if err := json.Unmarshal([]byte(respData.Choices[0].Message.Content), &script); err != nil {
		return nil, &GenerationError{Stage: models.StageScript, Err: fmt.Errorf("parse script JSON failed: %v", err)}
	}
	if len(script.Scenes) == 0 {
		return nil, &GenerationError{Stage: models.StageScript, Err: fmt.Errorf("script has no scenes")}
	}
	return script.Scenes, nil
}

// ============================================================================
// Luma Dream Machine：场景视频生成
// ============================================================================

type LumaVideoClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewLumaVideoClient(apiKey, baseURL string) *LumaVideoClient {
	return &LumaVideoClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *LumaVideoClient) Start(ctx context.Context, prompt, aspectRatio, videoType, style string) (string, error) {
	reqBody := map[string]interface{}{
		"prompt":       BuildVideoPrompt(prompt, videoType, style, aspectRatio),
		"aspect_ratio": aspectRatio,
		"model":        "dream-machine",
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/generations", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &GenerationError{Stage: models.StageVideo, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &GenerationError{Stage: models.StageVideo, Err: fmt.Errorf("luma status code: %d", resp.StatusCode)}
	}

	var respData struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", &GenerationError{Stage: models.StageVideo, Err: fmt.Errorf("decode response failed: %v", err)}
	}
	if respData.ID == "" {
		return "", &GenerationError{Stage: models.StageVideo, Err: fmt.Errorf("response missing 'id'")}
	}
	return respData.ID, nil
}

func (c *LumaVideoClient) Poll(ctx context.Context, generationID string) (VideoStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/generations/"+generationID, nil)
	if err != nil {
		return VideoStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return VideoStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VideoStatus{}, fmt.Errorf("luma status code: %d", resp.StatusCode)
	}

	var respData struct {
		Status   string  `json:"status"`
		VideoUrl string  `json:"video_url"`
		Progress float64 `json:"progress"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return VideoStatus{}, fmt.Errorf("decode response failed: %v", err)
	}
	return VideoStatus{
		Status:   respData.Status,
		VideoUrl: respData.VideoUrl,
		Progress: respData.Progress,
	}, nil
}

// ============================================================================
// ElevenLabs：配音合成
// ============================================================================

type ElevenLabsVoiceClient struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewElevenLabsVoiceClient(apiKey, baseURL string) *ElevenLabsVoiceClient {
	return &ElevenLabsVoiceClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *ElevenLabsVoiceClient) Synthesize(ctx context.Context, text, voiceID, language string) ([]byte, error) {
	reqBody := map[string]interface{}{
		"text":     text,
		"model_id": "eleven_multilingual_v2",
		"voice_settings": map[string]interface{}{
			"stability":         0.5,
			"similarity_boost":  0.75,
			"style":             0.5,
			"use_speaker_boost": true,
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/text-to-speech/"+voiceID, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &GenerationError{Stage: models.StageVoice, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &GenerationError{Stage: models.StageVoice, Err: fmt.Errorf("elevenlabs status code: %d", resp.StatusCode)}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GenerationError{Stage: models.StageVoice, Err: fmt.Errorf("read audio failed: %v", err)}
	}
	return audio, nil
}
