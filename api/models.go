package api

import (
	"time"

	"avatar/define"
	"avatar/lexicon"
	"avatar/playback"
	"avatar/session"
)

// ApiResponse 统一响应结构
type ApiResponse = define.ApiResponse

// CueRequest 入队单个手势。face 为空时从词典查找
type CueRequest struct {
	Arms string `json:"arms" binding:"required"`
	Face string `json:"face,omitempty"`
}

// TextRequest 翻译并入队一段文本
type TextRequest struct {
	Text string `json:"text" binding:"required"`
	Play bool   `json:"play,omitempty"` // 入队后立即开始播放
}

// TextResponse 文本加载结果
type TextResponse struct {
	Tokens []string          `json:"tokens"`
	Queue  playback.Snapshot `json:"queue"`
}

// SessionListResponse 会话列表
type SessionListResponse struct {
	Sessions []session.Info `json:"sessions"`
	Total    int            `json:"total"`
}

// GestureListResponse 词典
type GestureListResponse struct {
	Gestures    []lexicon.Gesture `json:"gestures"`
	Total       int               `json:"total"`
	DefaultFace string            `json:"default_face"`
}

// SystemStatusResponse 系统状态
type SystemStatusResponse struct {
	Sessions       int           `json:"sessions"`
	Gestures       int           `json:"gestures"`
	RendererModes  []string      `json:"renderer_modes"`
	RendererMode   string        `json:"renderer_mode"`
	TranslatorMode string        `json:"translator_mode"`
	Uptime         time.Duration `json:"uptime"`
	Version        string        `json:"version"`
}

// HealthResponse 健康检查
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
