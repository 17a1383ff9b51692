// Package lexicon 管理手势词典：每个词对应一个手臂动作剪辑和一个表情。
package lexicon

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"avatar/define"
)

//go:embed animations.json
var builtin []byte

// ErrEmptyArms 手势缺少手臂动作 ID
var ErrEmptyArms = errors.New("gesture arms is empty")

// Gesture 词典中的一个手势
type Gesture struct {
	Name       string `json:"name"`
	Arms       string `json:"arms"`
	Face       string `json:"face"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

// Duration 剪辑时长，未提供时为 0
func (g Gesture) Duration() time.Duration {
	return time.Duration(g.DurationMs) * time.Millisecond
}

// Option 配置 Registry
type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDefaultFace 替换默认表情
func WithDefaultFace(face string) Option {
	return func(r *Registry) {
		if face != "" {
			r.defaultFace = face
		}
	}
}

// Registry 手势词典
type Registry struct {
	logger      *slog.Logger
	defaultFace string

	mu       sync.RWMutex
	gestures map[string]Gesture
	order    []string
}

// NewRegistry 创建空词典
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger:      slog.New(slog.DiscardHandler),
		defaultFace: define.DefaultFace,
		gestures:    make(map[string]Gesture),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Builtin 创建载入内置词典的 Registry
func Builtin(opts ...Option) (*Registry, error) {
	r := NewRegistry(opts...)
	if err := r.Parse(builtin); err != nil {
		return nil, fmt.Errorf("加载内置词典失败: %w", err)
	}
	return r, nil
}

// Load 从 animations.json 加载手势
func (r *Registry) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取词典文件失败: %w", err)
	}
	if err := r.Parse(data); err != nil {
		return fmt.Errorf("解析词典文件 %s 失败: %w", path, err)
	}
	r.logger.Info("📖 词典已加载", "path", path, "gestures", r.Len())
	return nil
}

// Parse 解析 JSON 数组并逐个注册
func (r *Registry) Parse(data []byte) error {
	var gestures []Gesture
	if err := json.Unmarshal(data, &gestures); err != nil {
		return err
	}
	for i, g := range gestures {
		if err := r.Register(g); err != nil {
			return fmt.Errorf("第 %d 项: %w", i, err)
		}
	}
	return nil
}

// Register 注册一个手势，同一手臂动作重复注册时覆盖
func (r *Registry) Register(g Gesture) error {
	if g.Arms == "" {
		return ErrEmptyArms
	}
	if g.Face == "" {
		g.Face = r.defaultFace
	}
	if g.Name == "" {
		g.Name = g.Arms
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.gestures[g.Arms]; !exists {
		r.order = append(r.order, g.Arms)
	}
	r.gestures[g.Arms] = g
	return nil
}

// Get 按手臂动作 ID 查找手势
func (r *Registry) Get(arms string) (Gesture, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gestures[arms]
	return g, ok
}

// Len 手势数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gestures)
}

// Words 发给翻译后端的可用词表，保持加载顺序
func (r *Registry) Words() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	words := make([]string, len(r.order))
	copy(words, r.order)
	return words
}

// FaceFor 手臂动作对应的表情。休息姿态用默认表情，未知动作也回退到默认表情
func (r *Registry) FaceFor(arms string) string {
	if arms == define.DefaultArms {
		return r.defaultFace
	}
	if g, ok := r.Get(arms); ok {
		return g.Face
	}
	r.logger.Warn("⚠️ 词典中找不到表情", "arms", arms)
	return r.defaultFace
}

// Gestures 按手臂动作 ID 排序的全部手势
func (r *Registry) Gestures() []Gesture {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Gesture, 0, len(r.gestures))
	for _, g := range r.gestures {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Arms < out[j].Arms })
	return out
}

// DefaultFace 默认表情
func (r *Registry) DefaultFace() string { return r.defaultFace }
