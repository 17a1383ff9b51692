// Package hub 通过 websocket 把播放状态推送给前端，并把 Cue 转发给浏览器渲染端。
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"avatar/playback"
	"avatar/renderer"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer 每个状态订阅者的待发送消息上限，写满视为慢消费者
	sendBuffer = 32
)

// ErrHubClosed hub 已关闭，不再接受订阅
var ErrHubClosed = errors.New("hub closed")

// StatusMessage 推送给状态订阅者的消息
type StatusMessage struct {
	Type    string          `json:"type"`
	Session string          `json:"session"`
	Status  playback.Status `json:"status"`
	State   string          `json:"state,omitempty"`
	Length  int             `json:"length"`
	At      time.Time       `json:"at"`
}

// FrameMessage 模拟渲染端每次切换剪辑时推送的消息
type FrameMessage struct {
	Type    string         `json:"type"`
	Session string         `json:"session"`
	Frame   renderer.Frame `json:"frame"`
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex

	// 状态订阅者通过 send 异步写出，渲染端连接直接调用 write
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue 非阻塞投递，缓冲已满时返回 false
func (s *subscriber) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// writeLoop 把 send 中的消息依次写到连接，直到订阅者关闭或写失败
func (s *subscriber) writeLoop(onError func(error)) {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			if err := s.write(data); err != nil {
				onError(err)
				return
			}
		}
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		if s.done != nil {
			close(s.done)
		}
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// write 带写超时，同一连接上的写操作串行
func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub 一个会话的状态广播中心，作为控制器唯一的 Observer
type Hub struct {
	logger   *slog.Logger
	session  string
	snapshot func() playback.Snapshot

	mu     sync.Mutex
	subs   map[string]*subscriber
	last   *StatusMessage
	closed bool
}

// Option 配置 Hub
type Option func(*Hub)

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSnapshot 广播时附带控制器状态与队列长度
func WithSnapshot(fn func() playback.Snapshot) Option {
	return func(h *Hub) { h.snapshot = fn }
}

// New 创建会话的状态广播中心
func New(session string, opts ...Option) *Hub {
	h := &Hub{
		logger:  slog.New(slog.DiscardHandler),
		session: session,
		subs:    make(map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Observe 实现 playback.Observer
func (h *Hub) Observe(status playback.Status) {
	msg := StatusMessage{
		Type:    "status",
		Session: h.session,
		Status:  status,
		At:      time.Now().UTC(),
	}
	if h.snapshot != nil {
		snap := h.snapshot()
		msg.State = snap.State.String()
		msg.Length = snap.Length
	}

	h.mu.Lock()
	h.last = &msg
	h.mu.Unlock()

	h.broadcast(msg)
}

// PublishFrame 推送渲染帧，用作 renderer.Options.OnFrame
func (h *Hub) PublishFrame(f renderer.Frame) {
	h.broadcast(FrameMessage{Type: "frame", Session: h.session, Frame: f})
}

// Last 最近一次广播的状态
func (h *Hub) Last() (StatusMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return StatusMessage{}, false
	}
	return *h.last, true
}

// Subscribers 当前订阅者数量
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Serve 注册一个状态订阅连接并阻塞读取，直到连接断开。
// 新订阅者会先收到最近一次状态。
func (h *Hub) Serve(conn *websocket.Conn) error {
	sub := newSubscriber(conn)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return ErrHubClosed
	}
	h.subs[sub.id] = sub
	last := h.last
	h.mu.Unlock()

	h.logger.Info("🔌 状态订阅者已连接", "session", h.session, "subscriber", sub.id)
	defer h.remove(sub.id)

	if last != nil {
		if data, err := json.Marshal(last); err == nil {
			sub.enqueue(data)
		}
	}
	go sub.writeLoop(func(err error) {
		h.logger.Warn("⚠️ 推送失败，移除订阅者", "subscriber", sub.id, "error", err)
		h.remove(sub.id)
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("⚠️ 状态订阅连接异常断开", "subscriber", sub.id, "error", err)
			}
			return nil
		}
	}
}

// Close 断开所有订阅者
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		sub.close()
		h.logger.Info("🔌 状态订阅者已断开", "session", h.session, "subscriber", id)
	}
}

// broadcast 投递给所有订阅者的发送缓冲，不在调用方 goroutine 上写网络。
// 缓冲已满的慢订阅者被移除
func (h *Hub) broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("❌ 序列化广播消息失败", "error", err)
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if !sub.enqueue(data) {
			h.logger.Warn("⚠️ 订阅者消费过慢，移除", "subscriber", sub.id)
			h.remove(sub.id)
		}
	}
}
