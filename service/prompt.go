package service

import (
	"fmt"
	"strings"

	"BriefToVideo-server/models"
)

// 提示词拼装：把项目参数翻译成剧本生成和视频生成两种提示词

type videoTypeConfig struct {
	focus   string
	details string
}

var videoTypeConfigs = map[string]videoTypeConfig{
	"product": {
		focus:   "focus on product details, highlight key features with close-up shots, showcase product from multiple angles",
		details: "professional product photography style, clean background, emphasis on product quality and design",
	},
	"promo": {
		focus:   "dynamic action sequences, energetic movement, highlight benefits and value proposition",
		details: "engaging visuals that capture attention, vibrant colors, compelling narrative flow",
	},
	"tutorial": {
		focus:   "clear step-by-step demonstration, easy to follow, instructional clarity",
		details: "educational format, well-lit environment, clear visual hierarchy",
	},
	"testimonial": {
		focus:   "authentic human connection, emotional resonance, trust-building visuals",
		details: "warm atmosphere, natural lighting, genuine expressions",
	},
	"corporate": {
		focus:   "professional environment, team collaboration, business excellence",
		details: "polished corporate aesthetic, modern office setting, confident body language",
	},
}

type styleConfig struct {
	cinematography string
	pacing         string
}

var styleConfigs = map[string]styleConfig{
	"modern": {
		cinematography: "modern cinematography with smooth camera movements, contemporary framing, sleek visual style",
		pacing:         "moderate pacing with well-timed cuts, balanced rhythm between fast and slow moments",
	},
	"classic": {
		cinematography: "classic filmmaking approach, traditional composition, timeless aesthetic",
		pacing:         "deliberate pacing, allowing moments to breathe, elegant transitions",
	},
	"cinematic": {
		cinematography: "cinematic quality with dramatic lighting, depth of field, film-like color grading",
		pacing:         "cinematic pacing with dramatic pauses, epic scale, emotional beats",
	},
	"minimalist": {
		cinematography: "minimalist composition, clean lines, negative space, simple elegance",
		pacing:         "slow and contemplative pacing, minimal cuts, focus on essential elements",
	},
	"dynamic": {
		cinematography: "dynamic camera work with quick movements, varied angles, energetic framing",
		pacing:         "fast-paced editing with quick cuts, high energy, rapid visual rhythm",
	},
}

func typeConfigFor(videoType string) videoTypeConfig {
	if c, ok := videoTypeConfigs[videoType]; ok {
		return c
	}
	return videoTypeConfigs["product"]
}

func styleConfigFor(style string) styleConfig {
	if c, ok := styleConfigs[style]; ok {
		return c
	}
	return styleConfigs["modern"]
}

func aspectSpec(aspectRatio string) string {
	switch aspectRatio {
	case "9:16":
		return "vertical format optimized for mobile viewing"
	case "1:1":
		return "square format for social media"
	default:
		return "horizontal widescreen format"
	}
}

// BuildVideoPrompt 把单个场景的描述扩成完整的视频生成提示词
func BuildVideoPrompt(sceneText, videoType, style, aspectRatio string) string {
	tc := typeConfigFor(videoType)
	sc := styleConfigFor(style)

	base := sceneText
	if base == "" {
		base = "professional business video"
	}

	parts := []string{
		base + ", " + tc.focus,
		sc.cinematography,
		sc.pacing,
		aspectSpec(aspectRatio),
		"high quality, 4K resolution, professional production value",
		tc.details,
	}
	return strings.Join(parts, ", ")
}

// BuildScriptPrompt 剧本生成提示词，要求模型返回固定结构的 JSON
func BuildScriptPrompt(params models.Parameters) string {
	duration := params.Duration
	if duration <= 0 {
		duration = 30
	}
	return fmt.Sprintf(`Create a professional video script for a %s video.

Requirements:
- Duration: approximately %d seconds
- Type: %s
- Main message: %s

The script should include:
1. Scene-by-scene breakdown with visual descriptions
2. Timing for each scene
3. Subtitle text for each scene
4. Visual prompts optimized for AI video generation

Format the response as JSON with the following structure:
{
  "scenes": [
    {
      "sceneIndex": 1,
      "prompt": "detailed visual description for AI video generation",
      "duration": 5,
      "subtitle": "text to display as subtitle"
    }
  ]
}`, params.VideoType, duration, params.VideoType, params.Text)
}
