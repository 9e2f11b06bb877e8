package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 查询任务状态：GET /v1/api/tasks/:task_id
// 断线的客户端靠这里和项目详情兜底，进度事件流不回放
func (h *Handler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	t, err := h.Store.GetTaskByID(taskID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t})
}

// 项目进度 WebSocket 推送：订阅 Hub，事件来了直接转发。
// 推送是尽力而为，连上之前的事件收不到
func (h *Handler) ProjectProgressWebSocket(c *gin.Context) {
	projectID := c.Param("project_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	ch := h.Hub.Subscribe(projectID)
	defer h.Hub.Unsubscribe(projectID, ch)

	// 读协程只为感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("进度推送失败 project=%s: %v", projectID, err)
				return
			}
		}
	}
}
