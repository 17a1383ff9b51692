package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"avatar/hub"
	"avatar/lexicon"
	"avatar/playback"
	"avatar/renderer"
	"avatar/translate"
)

// ErrSessionNotFound 会话不存在
var ErrSessionNotFound = errors.New("session not found")

// Config 创建会话使用的参数
type Config struct {
	Mode            string
	Fade            time.Duration
	FacesDir        string
	DispatchTimeout time.Duration
	Scheduler       renderer.Scheduler
}

// Manager 管理所有会话
type Manager struct {
	cfg        Config
	lexicon    *lexicon.Registry
	translator translate.Translator
	logger     *slog.Logger

	sessions map[string]*Session
	mutex    sync.RWMutex
}

// NewManager 创建会话管理器
func NewManager(cfg Config, lex *lexicon.Registry, tr translate.Translator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if tr == nil {
		tr = translate.NewLocal(logger)
	}
	if cfg.Mode == "" {
		cfg.Mode = renderer.ModeSimulated
	}
	hub.RegisterRenderer()

	return &Manager{
		cfg:        cfg,
		lexicon:    lex,
		translator: tr,
		logger:     logger,
		sessions:   make(map[string]*Session),
	}
}

// Create 创建一个新会话
func (m *Manager) Create() (*Session, error) {
	return m.create(uuid.NewString())
}

// Default 返回默认会话，不存在时创建
func (m *Manager) Default() (*Session, error) {
	if s, err := m.Get(DefaultID); err == nil {
		return s, nil
	}
	s, err := m.create(DefaultID)
	if err != nil {
		// 并发创建时另一个调用者可能已经注册
		if existing, getErr := m.Get(DefaultID); getErr == nil {
			return existing, nil
		}
	}
	return s, err
}

// Get 按 ID 查找会话
func (m *Manager) Get(id string) (*Session, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List 按创建时间排序的所有会话
func (m *Manager) List() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Remove 停止并移除会话
func (m *Manager) Remove(id string) error {
	m.mutex.Lock()
	s, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mutex.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.close()
	return nil
}

// Close 关闭所有会话
func (m *Manager) Close() {
	m.mutex.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mutex.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// Lexicon 共享的手势词典
func (m *Manager) Lexicon() *lexicon.Registry { return m.lexicon }

func (m *Manager) create(id string) (*Session, error) {
	if _, err := m.Get(id); err == nil {
		return nil, fmt.Errorf("会话 %s 已存在", id)
	}
	logger := m.logger.With("session", id)

	ctrl := playback.New(
		playback.WithLogger(logger),
		playback.WithDispatchTimeout(m.cfg.DispatchTimeout),
	)
	h := hub.New(id, hub.WithLogger(logger), hub.WithSnapshot(ctrl.Snapshot))

	sink, err := renderer.New(m.cfg.Mode, renderer.Options{
		Logger:    logger,
		Fade:      m.cfg.Fade,
		FacesDir:  m.cfg.FacesDir,
		Clips:     ClipsFromLexicon(m.lexicon),
		Scheduler: m.cfg.Scheduler,
		OnFrame:   h.PublishFrame,
	})
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("创建渲染端失败: %w", err)
	}
	ctrl.SetSink(sink)
	ctrl.Subscribe(h.Observe)

	s := &Session{
		ID:         id,
		Mode:       m.cfg.Mode,
		CreatedAt:  time.Now().UTC(),
		Controller: ctrl,
		Pipeline:   translate.NewPipeline(ctrl, m.lexicon, m.translator, logger),
		Hub:        h,
		Sink:       sink,
		logger:     logger,
	}

	m.mutex.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mutex.Unlock()
		// 并发创建同一 ID：拆掉本次构建的控制器、hub 与渲染端
		s.close()
		return nil, fmt.Errorf("会话 %s 已存在", id)
	}
	m.sessions[id] = s
	m.mutex.Unlock()

	m.logger.Info("✨ 会话已创建", "session", id, "mode", m.cfg.Mode)
	return s, nil
}
