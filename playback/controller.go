package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type eventKind int

const (
	evEnqueue eventKind = iota
	evPlay
	evPause
	evStop
	evClear
	evFinish
)

type event struct {
	kind  eventKind
	cue   Cue
	token uint64
}

type effectKind int

const (
	fxNotify effectKind = iota
	fxDispatch
	fxRest
)

// effect 是一次状态迁移产生的副作用，在锁外按顺序执行
type effect struct {
	kind     effectKind
	status   Status
	cue      Cue
	token    uint64
	observer Observer
	sink     Sink
}

type observerSlot struct {
	id uint64
	fn Observer
}

// Option 配置 Controller
type Option func(*Controller)

// WithSink 在构造时接入渲染端
func WithSink(s Sink) Option { return func(c *Controller) { c.sink = s } }

// WithObserver 在构造时接入状态订阅者
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observerSeq++
		c.observer = observerSlot{id: c.observerSeq, fn: o}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRestCue 替换默认休息姿态
func WithRestCue(cue Cue) Option { return func(c *Controller) { c.rest = cue } }

// WithDispatchTimeout 为每次派发加一个看门狗：超时仍未完成则视为完成。
// 0 表示不限时。
func WithDispatchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Snapshot 控制器某一时刻的只读视图
type Snapshot struct {
	State      State  `json:"state"`
	Status     Status `json:"status"`
	Length     int    `json:"length"`
	Pending    []Cue  `json:"pending"`
	Current    *Cue   `json:"current,omitempty"`
	Dispatched uint64 `json:"dispatched"`
	Stale      uint64 `json:"stale"`
}

// Controller 播放状态机，每个虚拟形象会话一个实例
type Controller struct {
	logger  *slog.Logger
	rest    Cue
	timeout time.Duration

	mu          sync.Mutex
	state       State
	status      Status
	queue       *Queue
	current     *Cue
	token       uint64 // 在途 Cue 的令牌，0 表示没有
	seq         uint64
	stale       uint64
	sink        Sink
	observer    observerSlot
	observerSeq uint64
	inbox       []event
	draining    bool
	drained     chan struct{} // 当前排空轮次结束时关闭
}

// New 创建一个处于 Stopped 状态、队列为空的控制器
func New(opts ...Option) *Controller {
	c := &Controller{
		logger: slog.New(slog.DiscardHandler),
		rest:   RestCue(),
		state:  StateStopped,
		status: StatusStopped,
		queue:  NewQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enqueue 追加一个 Cue；空闲时立即派发
func (c *Controller) Enqueue(cue Cue) { c.submit(event{kind: evEnqueue, cue: cue}) }

// Play 从 Stopped/Paused 恢复运行；已在运行时无操作
func (c *Controller) Play() { c.submit(event{kind: evPlay}) }

// Pause 暂停。在途的 Cue 会正常播完，暂停只影响下一次推进
func (c *Controller) Pause() { c.submit(event{kind: evPause}) }

// Stop 清空队列、暂停，并派发休息姿态
func (c *Controller) Stop() { c.submit(event{kind: evStop}) }

// Clear 与 Stop 相同，但不派发休息姿态。用于加载新序列之前的重置
func (c *Controller) Clear() { c.submit(event{kind: evClear}) }

// SetSink 替换渲染端。只影响之后的派发
func (c *Controller) SetSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = s
}

// Subscribe 注册唯一的状态订阅者，替换之前的订阅者。
// 返回的取消函数只在该订阅者仍然有效时才清空订阅槽。
func (c *Controller) Subscribe(o Observer) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.observerSeq++
	id := c.observerSeq
	c.observer = observerSlot{id: id, fn: o}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.observer.id == id {
			c.observer = observerSlot{}
		}
	}
}

// State 当前运行状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot 返回当前状态的副本
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:      c.state,
		Status:     c.status,
		Length:     c.queue.Len(),
		Pending:    c.queue.Snapshot(),
		Dispatched: c.seq,
		Stale:      c.stale,
	}
	if c.current != nil {
		cur := *c.current
		snap.Current = &cur
	}
	return snap
}

// Settle 等待当前排空轮次结束。调用返回时，此前提交的所有操作都已生效，
// 之后读取的 State / Snapshot 反映这些操作。
// 不能在 Sink 或 Observer 回调内部调用：排空轮次正等着回调返回。
func (c *Controller) Settle(ctx context.Context) error {
	c.mu.Lock()
	if !c.draining {
		c.mu.Unlock()
		return nil
	}
	drained := c.drained
	c.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finishDrain 释放排空角色，调用时持有锁
func (c *Controller) finishDrain() {
	c.draining = false
	close(c.drained)
}

// submit 把事件放进收件箱。如果没有 goroutine 正在排空，
// 由当前调用者负责排空，直到收件箱为空。
func (c *Controller) submit(ev event) {
	c.mu.Lock()
	c.inbox = append(c.inbox, ev)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.drained = make(chan struct{})

	defer func() {
		// 回调 panic 时释放排空角色，剩余事件由下一次 submit 处理
		if r := recover(); r != nil {
			c.mu.Lock()
			c.finishDrain()
			c.mu.Unlock()
			panic(r)
		}
	}()

	for len(c.inbox) > 0 {
		next := c.inbox[0]
		c.inbox = c.inbox[1:]
		effects := c.apply(next)
		c.mu.Unlock()
		c.run(effects)
		c.mu.Lock()
	}
	c.finishDrain()
	c.mu.Unlock()
}

// apply 唯一的状态迁移函数，调用时持有锁
func (c *Controller) apply(ev event) []effect {
	switch ev.kind {
	case evEnqueue:
		c.queue.Push(ev.cue)
		effects := []effect{c.notify(statusFor(c.queue.Len()))}
		if c.state == StateIdle {
			effects = append(effects, c.advance()...)
		}
		return effects

	case evPlay:
		if c.state.Running() {
			return nil
		}
		c.logger.Info("▶️ 开始播放", "from", c.state.String(), "queued", c.queue.Len())
		if c.token != 0 {
			// 暂停期间仍有 Cue 在途：恢复运行，等它完成后再推进
			c.state = StateDispatching
			return nil
		}
		c.state = StateIdle
		return c.advance()

	case evPause:
		c.logger.Info("⏸️ 暂停播放", "from", c.state.String())
		c.state = StatePaused
		return nil

	case evStop, evClear:
		if ev.kind == evStop {
			c.logger.Info("⏹️ 停止播放", "from", c.state.String(), "dropped", c.queue.Len())
		} else {
			c.logger.Debug("🧹 清空队列", "from", c.state.String(), "dropped", c.queue.Len())
		}
		c.queue.Reset()
		c.token = 0
		c.current = nil
		c.state = StateStopped
		effects := []effect{c.notify(StatusStopped)}
		if ev.kind == evStop {
			effects = append(effects, c.restEffect())
		}
		return effects

	case evFinish:
		if ev.token == 0 || ev.token != c.token {
			c.stale++
			c.logger.Debug("ℹ️ 忽略过期的完成回调", "token", ev.token, "current", c.token)
			return nil
		}
		c.token = 0
		c.current = nil
		if c.state == StateDispatching {
			return c.advance()
		}
		return nil
	}
	return nil
}

// advance 决定下一步：暂停则不动；队列非空则派发队首；否则进入 Idle 并回到休息姿态
func (c *Controller) advance() []effect {
	if !c.state.Running() {
		return nil
	}

	cue, ok := c.queue.Pop()
	if !ok {
		c.state = StateIdle
		c.logger.Info("✅ 队列已播完，回到休息姿态")
		return []effect{c.notify(StatusEmpty), c.restEffect()}
	}

	c.seq++
	c.token = c.seq
	c.current = &cue
	c.state = StateDispatching
	return []effect{
		c.notify(statusFor(c.queue.Len())),
		{kind: fxDispatch, cue: cue, token: c.token, sink: c.sink},
	}
}

func (c *Controller) notify(s Status) effect {
	c.status = s
	return effect{kind: fxNotify, status: s, observer: c.observer.fn}
}

func (c *Controller) restEffect() effect {
	return effect{kind: fxRest, cue: c.rest, sink: c.sink}
}

func (c *Controller) run(effects []effect) {
	for _, fx := range effects {
		switch fx.kind {
		case fxNotify:
			if fx.observer != nil {
				fx.observer(fx.status)
			}
		case fxDispatch:
			c.dispatch(fx)
		case fxRest:
			c.dispatchRest(fx)
		}
	}
}

// dispatch 把 Cue 交给渲染端，完成回调只生效一次并带上令牌，
// 过期（Stop/Clear 之后）的完成回调在 apply 中被丢弃。
func (c *Controller) dispatch(fx effect) {
	token := fx.token
	complete := func() { c.submit(event{kind: evFinish, token: token}) }

	var once sync.Once
	stopWatchdog := func() bool { return false }
	if c.timeout > 0 {
		timer := time.AfterFunc(c.timeout, func() {
			once.Do(func() {
				c.logger.Warn("⚠️ 渲染端超时未完成，强制推进", "cue", fx.cue.String(), "timeout", c.timeout)
				complete()
			})
		})
		stopWatchdog = timer.Stop
	}
	done := func() {
		once.Do(func() {
			stopWatchdog()
			complete()
		})
	}

	if fx.sink == nil {
		c.logger.Warn("⚠️ 没有注册渲染端，跳过", "cue", fx.cue.String())
		done()
		return
	}

	c.logger.Info("🎬 派发动作", "arms", fx.cue.Arms, "face", fx.cue.Face, "token", token)
	fx.sink.Dispatch(fx.cue, done)
}

// dispatchRest 派发休息姿态，完成回调不会再推进队列
func (c *Controller) dispatchRest(fx effect) {
	if fx.sink == nil {
		return
	}
	var once sync.Once
	fx.sink.Dispatch(fx.cue, func() {
		once.Do(func() {
			c.logger.Debug("👋 休息姿态播放完成", "cue", fx.cue.String())
		})
	})
}
