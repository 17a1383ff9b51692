package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"avatar/define"
)

// handleStatusSocket 订阅会话状态推送
func (s *Server) handleStatusSocket(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("⚠️ websocket 升级失败", "error", err)
		return
	}
	if err := sess.Hub.Serve(conn); err != nil {
		s.logger.Warn("⚠️ 状态订阅结束", "session", sess.ID, "error", err)
	}
}

// handleRendererSocket 浏览器渲染端连接，仅 remote 模式可用
func (s *Server) handleRendererSocket(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return
	}
	bridge, ok := sess.Bridge()
	if !ok {
		c.JSON(http.StatusConflict, ApiResponse{
			Status: define.StatusError,
			Error:  fmt.Sprintf("会话 %s 使用 %s 渲染端，不接受浏览器渲染端连接", sess.ID, sess.Mode),
		})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("⚠️ websocket 升级失败", "error", err)
		return
	}
	if err := bridge.Serve(conn); err != nil {
		s.logger.Warn("⚠️ 渲染端连接结束", "session", sess.ID, "error", err)
	}
}
