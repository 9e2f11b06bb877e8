package routers

import (
	"BriefToVideo-server/routers/api"

	"github.com/gin-gonic/gin"
)

func InitRouter(h *api.Handler) *gin.Engine {
	r := gin.Default()
	v1 := r.Group("/v1/api")
	{
		v1.POST("/projects", h.CreateProject)
		v1.GET("/projects/:project_id", h.GetProject)
		v1.GET("/users/:user_id/projects", h.ListUserProjects)
		v1.PATCH("/projects/:project_id/subtitles", h.UpdateSubtitles)
		v1.POST("/projects/:project_id/scenes/:scene_index/regenerate", h.RegenerateScene)
		v1.DELETE("/projects/:project_id", h.DeleteProject)
		v1.GET("/tasks/:task_id", h.GetTaskStatus)
	}
	r.GET("/health", h.Health)
	r.GET("/projects/:project_id/progress/wss", h.ProjectProgressWebSocket)
	return r
}
