package renderer

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultClipDuration 资源没有提供时长时使用的剪辑长度
const DefaultClipDuration = 1500 * time.Millisecond

// Clip 一个动画剪辑
type Clip struct {
	Name     string
	Duration time.Duration
}

// FinishedEvent 某个 Action 播放到结尾
type FinishedEvent struct {
	Action *Action
}

// Action 剪辑的播放实例，每个剪辑只有一个
type Action struct {
	mixer   *Mixer
	clip    Clip
	run     uint64 // 每次 Reset 递增，旧的定时器据此失效
	running bool
	weight  float64
	fading  TransitionKind
	timer   Timer
}

// Clip 返回 Action 对应的剪辑
func (a *Action) Clip() Clip { return a.clip }

// Reset 回到第 0 帧并取消尚未触发的结束事件
func (a *Action) Reset() *Action {
	a.mixer.mu.Lock()
	defer a.mixer.mu.Unlock()

	a.run++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.running = false
	a.weight = 1
	a.fading = ""
	return a
}

// FadeIn 在 d 内把权重从 0 拉到 1
func (a *Action) FadeIn(d time.Duration) *Action {
	a.mixer.mu.Lock()
	defer a.mixer.mu.Unlock()
	a.fading = TransitionCrossfade
	a.weight = 1
	return a
}

// FadeOut 在 d 内把权重降到 0。剪辑本身继续走完，结束时仍会发出 finished
func (a *Action) FadeOut(d time.Duration) *Action {
	a.mixer.mu.Lock()
	defer a.mixer.mu.Unlock()
	a.fading = TransitionCrossfade
	a.weight = 0
	return a
}

// Play 单次播放，结束后停在最后一帧。
// 定时器在锁外创建，调度器可以同步触发 finished。
func (a *Action) Play() *Action {
	a.mixer.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	run := a.run
	a.running = true
	d := a.clip.Duration
	a.mixer.mu.Unlock()

	timer := a.mixer.scheduler.AfterFunc(d, func() {
		a.mixer.finish(a, run)
	})

	a.mixer.mu.Lock()
	if a.run == run && a.running {
		a.timer = timer
	}
	a.mixer.mu.Unlock()
	return a
}

// Running 是否仍在播放
func (a *Action) Running() bool {
	a.mixer.mu.Lock()
	defer a.mixer.mu.Unlock()
	return a.running
}

// Weight 当前目标权重
func (a *Action) Weight() float64 {
	a.mixer.mu.Lock()
	defer a.mixer.mu.Unlock()
	return a.weight
}

// Mixer 管理所有剪辑的 Action 与结束事件监听者
type Mixer struct {
	logger    *slog.Logger
	scheduler Scheduler

	mu           sync.Mutex
	actions      map[string]*Action
	listeners    map[uint64]func(FinishedEvent)
	nextListener uint64
}

// NewMixer 创建混合器，scheduler 为 nil 时使用真实定时器
func NewMixer(scheduler Scheduler, logger *slog.Logger) *Mixer {
	if scheduler == nil {
		scheduler = RealScheduler()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mixer{
		logger:    logger,
		scheduler: scheduler,
		actions:   make(map[string]*Action),
		listeners: make(map[uint64]func(FinishedEvent)),
	}
}

// AddClip 注册一个剪辑，同名剪辑会被覆盖
func (m *Mixer) AddClip(clip Clip) {
	if clip.Duration <= 0 {
		clip.Duration = DefaultClipDuration
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.actions[clip.Name]; exists {
		m.logger.Warn("⚠️ 剪辑已注册，将被覆盖", "clip", clip.Name)
	}
	m.actions[clip.Name] = &Action{mixer: m, clip: clip}
}

// Action 按剪辑名查找 Action
func (m *Mixer) Action(name string) (*Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[name]
	return a, ok
}

// Clips 已注册剪辑名（已排序）
func (m *Mixer) Clips() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.actions))
	for name := range m.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// On 注册 finished 监听者，返回用于 Off 的 ID
func (m *Mixer) On(fn func(FinishedEvent)) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListener++
	m.listeners[m.nextListener] = fn
	return m.nextListener
}

// Off 移除监听者
func (m *Mixer) Off(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, id)
}

// Listeners 当前监听者数量
func (m *Mixer) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// finish 在锁外把事件广播给所有监听者。
// 如果 Action 在定时器触发前被 Reset 过，run 不再匹配，事件被丢弃。
func (m *Mixer) finish(a *Action, run uint64) {
	m.mu.Lock()
	if a.run != run || !a.running {
		m.mu.Unlock()
		return
	}
	a.running = false
	a.timer = nil
	listeners := make([]func(FinishedEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	m.logger.Debug("⏹️ 剪辑播放结束", "clip", a.clip.Name)
	for _, fn := range listeners {
		fn(FinishedEvent{Action: a})
	}
}
