package api

import (
	"log"
	"net/http"
	"strconv"

	"BriefToVideo-server/models"
	"BriefToVideo-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler 路由层依赖集合，main.go 组装后注入
type Handler struct {
	Store    *models.Store
	Queue    service.Submitter
	Pipeline *service.Pipeline
	Hub      *service.Hub
}

// 创建项目并启动生成流水线
func (h *Handler) CreateProject(c *gin.Context) {
	var req struct {
		UserId     string            `json:"user_id"`
		Name       string            `json:"name"`
		Template   string            `json:"template"`
		Parameters models.Parameters `json:"parameters"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserId == "" || req.Template == "" || req.Parameters.VideoType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: user_id, template, parameters.videoType"})
		return
	}
	if req.Name == "" {
		req.Name = "Untitled Project"
	}

	project := models.Project{
		ID:         uuid.NewString(),
		UserId:     req.UserId,
		Name:       req.Name,
		Template:   req.Template,
		Parameters: req.Parameters,
		Status:     models.ProjectStatusDraft,
	}
	if err := h.Store.CreateProject(&project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建项目失败: " + err.Error()})
		return
	}

	// 提交剧本任务，流水线从这里开始
	task, err := h.Queue.Submit(models.StageScript, project.ID, nil, "Script generation queued")
	if err != nil {
		log.Printf("剧本任务入队失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "剧本任务入队失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"project": gin.H{
			"id":      project.ID,
			"name":    project.Name,
			"status":  project.Status,
			"task_id": task.ID,
		},
		"message": "Project created and generation started",
	})
}

// 获取项目聚合详情
func (h *Handler) GetProject(c *gin.Context) {
	projectID := c.Param("project_id")
	detail, err := h.Store.GetProjectDetail(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"project": detail,
	})
}

// 用户的项目列表
func (h *Handler) ListUserProjects(c *gin.Context) {
	userID := c.Param("user_id")
	projects, err := h.Store.ListProjectsByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取项目列表失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"projects": projects,
	})
}

// 整体替换字幕并把项目推入编辑态
func (h *Handler) UpdateSubtitles(c *gin.Context) {
	projectID := c.Param("project_id")
	var req struct {
		Subtitles []models.Subtitle `json:"subtitles"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.Store.GetProject(projectID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	for i := range req.Subtitles {
		if req.Subtitles[i].ID == "" {
			req.Subtitles[i].ID = uuid.NewString()
		}
	}
	if err := h.Store.ReplaceSubtitles(projectID, req.Subtitles); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新字幕失败: " + err.Error()})
		return
	}
	// 向前推进才生效，已 ready 的项目不会被拉回 editing
	if err := h.Store.AdvanceStatus(projectID, models.ProjectStatusEditing); err != nil {
		log.Printf("推进项目状态失败: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// 重新生成单个场景
func (h *Handler) RegenerateScene(c *gin.Context) {
	projectID := c.Param("project_id")
	sceneIndex, err := strconv.Atoi(c.Param("scene_index"))
	if err != nil || sceneIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scene_index"})
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.Pipeline.RegenerateScene(projectID, sceneIndex, req.Prompt)
	if err != nil {
		if service.IsValidationError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "场景重生成失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Scene regeneration started",
		"task_id": task.ID,
	})
}

// 删除项目
func (h *Handler) DeleteProject(c *gin.Context) {
	projectID := c.Param("project_id")
	if _, err := h.Store.GetProject(projectID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if err := h.Store.DeleteProject(projectID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除项目失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Project deleted",
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
