package main

import (
	"fmt"
	"time"

	"BriefToVideo-server/config"
	"BriefToVideo-server/models"
	"BriefToVideo-server/routers"
	"BriefToVideo-server/routers/api"
	"BriefToVideo-server/service"
)

func main() {
	config.InitConfig()
	fmt.Println("Server starting on port", config.AppConfig.Server.Port)
	models.InitDB()
	fmt.Println("Database initialized")

	service.InitMinIO()
	fmt.Println("MinIO initialized")

	cfg := config.AppConfig
	store := models.NewStore()
	hub := service.NewHub()
	queue := service.NewQueue(cfg.Redis.Addr, cfg.Redis.Password, store)

	pipeline := &service.Pipeline{
		Store:       store,
		Queue:       queue,
		Broadcaster: hub,
		Counter:     service.NewRedisSceneCounter(cfg.Redis.Addr, cfg.Redis.Password),

		Script:    service.NewOpenAIScriptClient(cfg.AI.OpenAIKey, cfg.AI.OpenAIBase),
		Video:     service.NewLumaVideoClient(cfg.AI.LumaKey, cfg.AI.LumaBase),
		Voice:     service.NewElevenLabsVoiceClient(cfg.AI.ElevenLabsKey, cfg.AI.ElevenLabsBase),
		Music:     service.NewMediaWorkerClient(cfg.AI.MediaWorkerAddr),
		Assembler: service.NewMediaWorkerClient(cfg.AI.MediaWorkerAddr),
		Media:     service.MinioStorage{},

		PollInterval:    time.Duration(cfg.Pipeline.PollInterval) * time.Second,
		PollMaxAttempts: cfg.Pipeline.PollMaxAttempts,
	}

	scheduler := service.NewScheduler(cfg.Redis.Addr, cfg.Redis.Password, cfg.Pipeline.Concurrency, pipeline)
	scheduler.Start()
	fmt.Println("Scheduler started")

	h := &api.Handler{
		Store:    store,
		Queue:    queue,
		Pipeline: pipeline,
		Hub:      hub,
	}
	r := routers.InitRouter(h)
	r.Run(config.AppConfig.Server.Port)
}
