package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	AI struct {
		OpenAIKey       string `yaml:"openai_key"`
		OpenAIBase      string `yaml:"openai_base"`
		LumaKey         string `yaml:"luma_key"`
		LumaBase        string `yaml:"luma_base"`
		ElevenLabsKey   string `yaml:"elevenlabs_key"`
		ElevenLabsBase  string `yaml:"elevenlabs_base"`
		MediaWorkerAddr string `yaml:"media_worker_addr"`
	} `yaml:"ai"`
	Pipeline struct {
		Concurrency     int `yaml:"concurrency"`
		PollInterval    int `yaml:"poll_interval"`     // 秒
		PollMaxAttempts int `yaml:"poll_max_attempts"` // 视频轮询次数上限
	} `yaml:"pipeline"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
		Domain    string `yaml:"domain"`
	} `yaml:"minio"`
}

var AppConfig *Config

func InitConfig() {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		log.Fatalf("配置文件读取失败: %v", err)
	}
	defer f.Close()
	decoder := yaml.NewDecoder(f)
	AppConfig = &Config{}
	if err := decoder.Decode(AppConfig); err != nil {
		log.Fatalf("配置文件解析失败: %v", err)
	}
	applyDefaults(AppConfig)
}

func applyDefaults(c *Config) {
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 5
	}
	if c.Pipeline.PollInterval <= 0 {
		c.Pipeline.PollInterval = 5
	}
	if c.Pipeline.PollMaxAttempts <= 0 {
		c.Pipeline.PollMaxAttempts = 60
	}
	if c.AI.OpenAIBase == "" {
		c.AI.OpenAIBase = "https://api.openai.com/v1"
	}
	if c.AI.LumaBase == "" {
		c.AI.LumaBase = "https://api.lumalabs.ai/v1"
	}
	if c.AI.ElevenLabsBase == "" {
		c.AI.ElevenLabsBase = "https://api.elevenlabs.io/v1"
	}
}
