// Package session 管理虚拟形象会话：每个会话一个播放控制器、一条翻译流水线、
// 一个状态广播中心和一个渲染端。
package session

import (
	"log/slog"
	"time"

	"avatar/hub"
	"avatar/lexicon"
	"avatar/playback"
	"avatar/renderer"
	"avatar/translate"
)

// DefaultID 启动时创建的默认会话
const DefaultID = "default"

// Session 一个虚拟形象会话
type Session struct {
	ID         string
	Mode       string
	CreatedAt  time.Time
	Controller *playback.Controller
	Pipeline   *translate.Pipeline
	Hub        *hub.Hub
	Sink       playback.Sink

	logger *slog.Logger
}

// Info 会话概要，用于接口返回
type Info struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	CreatedAt         time.Time         `json:"created_at"`
	Queue             playback.Snapshot `json:"queue"`
	Tokens            []string          `json:"tokens"`
	Subscribers       int               `json:"subscribers"`
	RendererConnected bool              `json:"renderer_connected"`
	CurrentClip       string            `json:"current_clip,omitempty"`
}

// Bridge 远程渲染端桥接，仅 remote 模式有
func (s *Session) Bridge() (*hub.Bridge, bool) {
	b, ok := s.Sink.(*hub.Bridge)
	return b, ok
}

// Player 本地模拟渲染端，仅 simulated 模式有
func (s *Session) Player() (*renderer.Player, bool) {
	p, ok := s.Sink.(*renderer.Player)
	return p, ok
}

// Info 当前会话概要
func (s *Session) Info() Info {
	info := Info{
		ID:          s.ID,
		Mode:        s.Mode,
		CreatedAt:   s.CreatedAt,
		Queue:       s.Controller.Snapshot(),
		Tokens:      s.Pipeline.Tokens(),
		Subscribers: s.Hub.Subscribers(),
	}
	if b, ok := s.Bridge(); ok {
		info.RendererConnected = b.Connected()
	}
	if p, ok := s.Player(); ok {
		info.RendererConnected = true
		info.CurrentClip = p.Current()
	}
	return info
}

// close 停止播放并断开所有连接
func (s *Session) close() {
	s.Controller.Stop()
	s.Hub.Close()
	if b, ok := s.Bridge(); ok {
		b.Close()
	}
	s.logger.Info("🗑️ 会话已关闭", "session", s.ID)
}

// ClipsFromLexicon 词典中每个手势对应一个剪辑
func ClipsFromLexicon(lex *lexicon.Registry) []renderer.Clip {
	gestures := lex.Gestures()
	clips := make([]renderer.Clip, 0, len(gestures))
	for _, g := range gestures {
		clips = append(clips, renderer.Clip{Name: renderer.ClipName(g.Arms), Duration: g.Duration()})
	}
	return clips
}
