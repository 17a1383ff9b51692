// Package api 提供会话、队列与词典的 HTTP / websocket 接口。
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"avatar/session"
)

// Version 接口版本
const Version = "1.0.0"

// Server API 服务器
type Server struct {
	manager        *session.Manager
	logger         *slog.Logger
	startTime      time.Time
	version        string
	rendererMode   string
	translatorMode string
	upgrader       websocket.Upgrader
}

// Option 配置 Server
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithModes 状态接口中展示的渲染端与翻译模式
func WithModes(rendererMode, translatorMode string) Option {
	return func(s *Server) {
		s.rendererMode = rendererMode
		s.translatorMode = translatorMode
	}
}

// NewServer 创建 API 服务器
func NewServer(manager *session.Manager, opts ...Option) *Server {
	s := &Server{
		manager:   manager,
		logger:    slog.New(slog.DiscardHandler),
		startTime: time.Now(),
		version:   Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewEngine 创建带 CORS 的 gin 引擎
func NewEngine(origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))
	return r
}

// SetupRoutes 设置路由
func (s *Server) SetupRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		system := v1.Group("/system")
		{
			system.GET("/health", s.handleHealthCheck)     // 健康检查
			system.GET("/status", s.handleGetSystemStatus) // 系统状态
		}

		v1.GET("/gestures", s.handleGetGestures) // 手势词典

		sessions := v1.Group("/sessions")
		{
			sessions.GET("", s.handleGetSessions)                 // 会话列表
			sessions.POST("", s.handleCreateSession)              // 创建会话
			sessions.GET("/:sessionId", s.handleGetSession)       // 会话详情
			sessions.DELETE("/:sessionId", s.handleDeleteSession) // 删除会话

			sessionRoutes := sessions.Group("/:sessionId")
			{
				queue := sessionRoutes.Group("/queue")
				{
					queue.GET("", s.handleGetQueue)         // 队列快照
					queue.POST("/cues", s.handleEnqueueCue) // 入队单个手势
					queue.POST("/play", s.handlePlay)       // 开始播放
					queue.POST("/pause", s.handlePause)     // 暂停
					queue.POST("/stop", s.handleStop)       // 停止并回到休息姿态
					queue.POST("/clear", s.handleClear)     // 清空
					queue.POST("/restart", s.handleRestart) // 重新播放上一段文本
				}

				sessionRoutes.POST("/text", s.handleLoadText) // 翻译文本并入队

				ws := sessionRoutes.Group("/ws")
				{
					ws.GET("/status", s.handleStatusSocket)     // 状态推送
					ws.GET("/renderer", s.handleRendererSocket) // 浏览器渲染端
				}
			}
		}
	}
}
