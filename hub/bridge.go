package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"avatar/define"
	"avatar/playback"
	"avatar/renderer"
)

// ModeRemote 浏览器渲染端模式
const ModeRemote = "remote"

// DispatchMessage 发给浏览器渲染端的播放指令
type DispatchMessage struct {
	Type        string                  `json:"type"`
	ID          string                  `json:"id"`
	Arms        string                  `json:"arms"`
	Face        string                  `json:"face"`
	Clip        string                  `json:"clip"`
	FaceTexture string                  `json:"face_texture"`
	Mode        renderer.TransitionKind `json:"mode"`
	FadeSeconds float64                 `json:"fade_seconds"`
}

// rendererConn 一条渲染端连接及其在途的 Cue
type rendererConn struct {
	sub     *subscriber
	pending map[string]func()
	active  string
}

// BridgeOption 配置 Bridge
type BridgeOption func(*Bridge)

func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithBridgeFade 不同剪辑之间的过渡时长
func WithBridgeFade(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.fade = d
		}
	}
}

// WithBridgeFacesDir 表情贴图目录
func WithBridgeFacesDir(dir string) BridgeOption {
	return func(b *Bridge) {
		if dir != "" {
			b.facesDir = dir
		}
	}
}

// Bridge 把 Cue 通过 websocket 转发给浏览器里的渲染端，实现 playback.Sink。
// 每个会话只有一个渲染端连接。
type Bridge struct {
	logger   *slog.Logger
	fade     time.Duration
	facesDir string

	mu   sync.Mutex
	conn *rendererConn
}

// NewBridge 创建渲染端桥接
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{
		logger:   slog.New(slog.DiscardHandler),
		fade:     renderer.FadeDuration(define.DefaultFadeSeconds),
		facesDir: "faces",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterRenderer 把 remote 模式注册到渲染端工厂
func RegisterRenderer() {
	renderer.Register(ModeRemote, func(opts renderer.Options) (playback.Sink, error) {
		return NewBridge(
			WithBridgeLogger(opts.Logger),
			WithBridgeFade(opts.Fade),
			WithBridgeFacesDir(opts.FacesDir),
		), nil
	})
}

// Connected 是否有渲染端在线
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Pending 在途 Cue 数量
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return 0
	}
	return len(b.conn.pending)
}

// Dispatch 实现 playback.Sink
func (b *Bridge) Dispatch(cue playback.Cue, done func()) {
	face := cue.Face
	if face == "" {
		face = define.DefaultFace
	}
	clip := renderer.ClipName(cue.Arms)

	b.mu.Lock()
	rc := b.conn
	if rc == nil {
		b.mu.Unlock()
		b.logger.Warn("⚠️ 没有渲染端在线，跳过", "cue", cue.String(),
			"error", fmt.Errorf("%w: %s", renderer.ErrCueNotResolvable, clip))
		done()
		return
	}
	plan := renderer.PlanTransition(rc.active, clip, b.fade)
	rc.active = clip
	id := uuid.NewString()
	rc.pending[id] = done
	b.mu.Unlock()

	msg := DispatchMessage{
		Type:        "dispatch",
		ID:          id,
		Arms:        cue.Arms,
		Face:        face,
		Clip:        clip,
		FaceTexture: path.Join(b.facesDir, face+".png"),
		Mode:        plan.Kind,
		FadeSeconds: plan.FadeSeconds,
	}
	data, err := json.Marshal(msg)
	if err == nil {
		err = rc.sub.write(data)
	}
	if err != nil {
		b.logger.Error("❌ 发送给渲染端失败", "cue", cue.String(), "error", err)
		b.complete(rc, id)
		return
	}
	b.logger.Debug("📤 已发送给渲染端", "id", id, "clip", clip, "mode", string(plan.Kind))
}

// Serve 接管一条渲染端连接并阻塞读取 finished 回执，直到连接断开。
// 旧连接被关闭，其在途 Cue 全部视为完成。
func (b *Bridge) Serve(conn *websocket.Conn) error {
	rc := &rendererConn{
		sub:     &subscriber{id: uuid.NewString(), conn: conn},
		pending: make(map[string]func()),
	}

	b.mu.Lock()
	old := b.conn
	b.conn = rc
	b.mu.Unlock()

	if old != nil {
		b.logger.Warn("⚠️ 新的渲染端连接，替换旧连接", "old", old.sub.id, "new", rc.sub.id)
		b.detach(old)
	}
	b.logger.Info("🖥️ 渲染端已连接", "renderer", rc.sub.id)
	defer b.detach(rc)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Warn("⚠️ 渲染端连接异常断开", "renderer", rc.sub.id, "error", err)
			}
			return nil
		}
		b.handle(rc, data)
	}
}

// Close 断开当前渲染端
func (b *Bridge) Close() {
	b.mu.Lock()
	rc := b.conn
	b.mu.Unlock()
	if rc != nil {
		b.detach(rc)
	}
}

func (b *Bridge) handle(rc *rendererConn, data []byte) {
	if !gjson.ValidBytes(data) {
		b.logger.Warn("⚠️ 渲染端消息不是合法 JSON", "renderer", rc.sub.id)
		return
	}
	switch t := gjson.GetBytes(data, "type").String(); t {
	case "finished":
		id := gjson.GetBytes(data, "id").String()
		if !b.complete(rc, id) {
			b.logger.Debug("ℹ️ 忽略未知的 finished 回执", "id", id)
		}
	case "ping":
	default:
		b.logger.Debug("ℹ️ 未知的渲染端消息类型", "type", t)
	}
}

// complete 调用 id 对应的 done，id 不在途时返回 false
func (b *Bridge) complete(rc *rendererConn, id string) bool {
	b.mu.Lock()
	done, ok := rc.pending[id]
	delete(rc.pending, id)
	b.mu.Unlock()
	if ok {
		done()
	}
	return ok
}

// detach 关闭连接并完成其所有在途 Cue
func (b *Bridge) detach(rc *rendererConn) {
	b.mu.Lock()
	if b.conn == rc {
		b.conn = nil
	}
	pending := rc.pending
	rc.pending = make(map[string]func())
	b.mu.Unlock()

	_ = rc.sub.conn.Close()
	if len(pending) > 0 {
		b.logger.Warn("⚠️ 渲染端断开，在途 Cue 视为完成", "renderer", rc.sub.id, "pending", len(pending))
	}
	for _, done := range pending {
		done()
	}
}
