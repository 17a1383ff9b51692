package renderer

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"avatar/playback"
)

// Options 创建渲染端所需的参数
type Options struct {
	Logger    *slog.Logger
	Fade      time.Duration
	FacesDir  string
	Clips     []Clip
	Scheduler Scheduler
	OnFrame   func(Frame)
}

// Constructor 渲染端构造函数
type Constructor func(opts Options) (playback.Sink, error)

// Factory 渲染端工厂
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

const ModeSimulated = "simulated"

var defaultFactory = &Factory{
	constructors: map[string]Constructor{
		ModeSimulated: newSimulated,
	},
}

// Register 注册渲染模式
func Register(mode string, ctor Constructor) {
	defaultFactory.mu.Lock()
	defer defaultFactory.mu.Unlock()
	defaultFactory.constructors[mode] = ctor
}

// New 按模式创建渲染端
func New(mode string, opts Options) (playback.Sink, error) {
	defaultFactory.mu.RLock()
	ctor, ok := defaultFactory.constructors[mode]
	defaultFactory.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("未知的渲染模式: %s (可用: %v)", mode, Modes())
	}
	return ctor(opts)
}

// Modes 支持的渲染模式
func Modes() []string {
	defaultFactory.mu.RLock()
	defer defaultFactory.mu.RUnlock()

	modes := make([]string, 0, len(defaultFactory.constructors))
	for mode := range defaultFactory.constructors {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}

func newSimulated(opts Options) (playback.Sink, error) {
	mixer := NewMixer(opts.Scheduler, opts.Logger)
	for _, clip := range opts.Clips {
		mixer.AddClip(clip)
	}
	if _, ok := mixer.Action(ClipName("")); !ok {
		// 休息姿态必须存在，否则每次播完都会报找不到资源
		mixer.AddClip(Clip{Name: ClipName(""), Duration: DefaultClipDuration})
	}
	return NewPlayer(mixer,
		WithPlayerLogger(opts.Logger),
		WithFade(opts.Fade),
		WithFacesDir(opts.FacesDir),
		WithFrameHook(opts.OnFrame),
	), nil
}
