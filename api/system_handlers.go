package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"avatar/define"
	"avatar/renderer"
)

// handleHealthCheck 健康检查
func (s *Server) handleHealthCheck(c *gin.Context) {
	status := "healthy"
	if s.manager == nil {
		status = "unhealthy"
	}

	httpStatus := http.StatusOK
	if status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, ApiResponse{
		Status: define.StatusSuccess,
		Data: HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   s.version,
		},
	})
}

// handleGetSystemStatus 获取系统状态
func (s *Server) handleGetSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ApiResponse{
		Status: define.StatusSuccess,
		Data: SystemStatusResponse{
			Sessions:       len(s.manager.List()),
			Gestures:       s.manager.Lexicon().Len(),
			RendererModes:  renderer.Modes(),
			RendererMode:   s.rendererMode,
			TranslatorMode: s.translatorMode,
			Uptime:         time.Since(s.startTime),
			Version:        s.version,
		},
	})
}

// handleGetGestures 获取手势词典
func (s *Server) handleGetGestures(c *gin.Context) {
	lex := s.manager.Lexicon()
	gestures := lex.Gestures()
	c.JSON(http.StatusOK, ApiResponse{
		Status: define.StatusSuccess,
		Data: GestureListResponse{
			Gestures:    gestures,
			Total:       len(gestures),
			DefaultFace: lex.DefaultFace(),
		},
	})
}
