package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"avatar/define"
	"avatar/playback"
	"avatar/session"
	"avatar/translate"
)

// sessionFrom 取路径中的会话，不存在时直接写 404
func (s *Server) sessionFrom(c *gin.Context) (*session.Session, bool) {
	id := c.Param("sessionId")
	sess, err := s.manager.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ApiResponse{
			Status: define.StatusError,
			Error:  fmt.Sprintf("会话 %s 不存在", id),
		})
		return nil, false
	}
	return sess, true
}

// settleTimeout 读取快照前等待控制器处理完已提交操作的最长时间
const settleTimeout = time.Second

// settledSnapshot 等控制器处理完本次请求提交的操作后再读取快照
func (s *Server) settledSnapshot(c *gin.Context, sess *session.Session) playback.Snapshot {
	ctx, cancel := context.WithTimeout(c.Request.Context(), settleTimeout)
	defer cancel()
	if err := sess.Controller.Settle(ctx); err != nil {
		s.logger.Warn("⚠️ 控制器仍在处理事件，返回的快照可能不是最新", "session", sess.ID, "error", err)
	}
	return sess.Controller.Snapshot()
}

// handleGetSessions 获取所有会话
func (s *Server) handleGetSessions(c *gin.Context) {
	sessions := s.manager.List()
	infos := make([]session.Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status: define.StatusSuccess,
		Data: SessionListResponse{
			Sessions: infos,
			Total:    len(infos),
		},
	})
}

// handleCreateSession 创建新会话
func (s *Server) handleCreateSession(c *gin.Context) {
	sess, err := s.manager.Create()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ApiResponse{
			Status: define.StatusError,
			Error:  fmt.Sprintf("创建会话失败：%v", err),
		})
		return
	}

	c.JSON(http.StatusCreated, ApiResponse{
		Status:  define.StatusSuccess,
		Message: fmt.Sprintf("会话 %s 创建成功", sess.ID),
		Data:    sess.Info(),
	})
}

// handleGetSession 获取会话详情
func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ApiResponse{Status: define.StatusSuccess, Data: sess.Info()})
}

// handleDeleteSession 删除会话
func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("sessionId")
	if err := s.manager.Remove(id); err != nil {
		httpStatus := http.StatusInternalServerError
		if errors.Is(err, session.ErrSessionNotFound) {
			httpStatus = http.StatusNotFound
		}
		c.JSON(httpStatus, ApiResponse{
			Status: define.StatusError,
			Error:  fmt.Sprintf("删除会话失败：%v", err),
		})
		return
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status:  define.StatusSuccess,
		Message: fmt.Sprintf("会话 %s 已删除", id),
	})
}

// handleGetQueue 获取队列快照
func (s *Server) handleGetQueue(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ApiResponse{Status: define.StatusSuccess, Data: s.settledSnapshot(c, sess)})
}

// handleEnqueueCue 入队单个手势
func (s *Server) handleEnqueueCue(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return
	}

	var req CueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: define.StatusError,
			Error:  "无效的手势请求：" + err.Error(),
		})
		return
	}

	var cue playback.Cue
	if req.Face == "" {
		cue = sess.Pipeline.Enqueue(req.Arms)
	} else {
		cue = playback.Cue{Arms: req.Arms, Face: req.Face}
		sess.Controller.Enqueue(cue)
	}

	c.JSON(http.StatusAccepted, ApiResponse{
		Status:  define.StatusSuccess,
		Message: fmt.Sprintf("手势 %s 已入队", cue.String()),
		Data:    s.settledSnapshot(c, sess),
	})
}

// queueOp 播放控制类接口的公共逻辑
func (s *Server) queueOp(op func(*session.Session), message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.sessionFrom(c)
		if !ok {
			return
		}
		op(sess)
		c.JSON(http.StatusOK, ApiResponse{
			Status:  define.StatusSuccess,
			Message: message,
			Data:    s.settledSnapshot(c, sess),
		})
	}
}

func (s *Server) handlePlay(c *gin.Context) {
	s.queueOp(func(sess *session.Session) { sess.Controller.Play() }, "开始播放")(c)
}

func (s *Server) handlePause(c *gin.Context) {
	s.queueOp(func(sess *session.Session) { sess.Controller.Pause() }, "已暂停")(c)
}

func (s *Server) handleStop(c *gin.Context) {
	s.queueOp(func(sess *session.Session) { sess.Controller.Stop() }, "已停止")(c)
}

func (s *Server) handleClear(c *gin.Context) {
	s.queueOp(func(sess *session.Session) { sess.Controller.Clear() }, "队列已清空")(c)
}

func (s *Server) handleRestart(c *gin.Context) {
	s.queueOp(func(sess *session.Session) { sess.Pipeline.Restart() }, "重新播放")(c)
}

// handleLoadText 翻译文本并入队
func (s *Server) handleLoadText(c *gin.Context) {
	sess, ok := s.sessionFrom(c)
	if !ok {
		return
	}

	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ApiResponse{
			Status: define.StatusError,
			Error:  "无效的文本请求：" + err.Error(),
		})
		return
	}

	tokens, err := sess.Pipeline.Load(c.Request.Context(), req.Text)
	if err != nil {
		httpStatus := http.StatusBadGateway
		if errors.Is(err, translate.ErrEmptyText) {
			httpStatus = http.StatusBadRequest
		}
		c.JSON(httpStatus, ApiResponse{
			Status: define.StatusError,
			Error:  fmt.Sprintf("处理文本失败：%v", err),
		})
		return
	}
	if req.Play {
		sess.Controller.Play()
	}

	c.JSON(http.StatusOK, ApiResponse{
		Status:  define.StatusSuccess,
		Message: fmt.Sprintf("已入队 %d 个手势", len(tokens)),
		Data: TextResponse{
			Tokens: tokens,
			Queue:  s.settledSnapshot(c, sess),
		},
	})
}
