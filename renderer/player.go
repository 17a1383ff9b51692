package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"avatar/define"
	"avatar/playback"
)

// ErrCueNotResolvable 渲染端找不到 Cue 对应的资源
var ErrCueNotResolvable = errors.New("cue not resolvable")

// Frame 渲染端每次切换剪辑时发出的记录
type Frame struct {
	Cue         playback.Cue `json:"cue"`
	Transition  Transition   `json:"transition"`
	FaceTexture string       `json:"face_texture"`
	At          time.Time    `json:"at"`
}

// PlayerOption 配置 Player
type PlayerOption func(*Player)

// WithFade 设置不同剪辑之间的过渡时长
func WithFade(d time.Duration) PlayerOption {
	return func(p *Player) {
		if d > 0 {
			p.fade = d
		}
	}
}

// WithFacesDir 设置表情贴图目录
func WithFacesDir(dir string) PlayerOption {
	return func(p *Player) {
		if dir != "" {
			p.facesDir = dir
		}
	}
}

// WithFrameHook 每次切换剪辑后回调，用于推送给前端或测试
func WithFrameHook(fn func(Frame)) PlayerOption { return func(p *Player) { p.hook = fn } }

func WithPlayerLogger(l *slog.Logger) PlayerOption {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}

// Player 基于 Mixer 的 playback.Sink 实现
type Player struct {
	logger   *slog.Logger
	mixer    *Mixer
	fade     time.Duration
	facesDir string
	hook     func(Frame)

	mu      sync.Mutex
	current *Action
	face    string
}

// NewPlayer 创建渲染端
func NewPlayer(mixer *Mixer, opts ...PlayerOption) *Player {
	p := &Player{
		logger:   slog.New(slog.DiscardHandler),
		mixer:    mixer,
		fade:     FadeDuration(define.DefaultFadeSeconds),
		facesDir: "faces",
		face:     define.DefaultFace,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FaceTexture 表情 ID 对应的贴图路径
func (p *Player) FaceTexture(face string) string {
	if face == "" {
		face = define.DefaultFace
	}
	return path.Join(p.facesDir, face+".png")
}

// Face 当前表情
func (p *Player) Face() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.face
}

// Current 当前剪辑名，没有时为空
func (p *Player) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.Clip().Name
}

// Dispatch 实现 playback.Sink。done 在本次 Action 自己的 finished 事件上调用，
// 旧剪辑淡出后的 finished 不会触发新 Cue 的完成。
func (p *Player) Dispatch(cue playback.Cue, done func()) {
	face := cue.Face
	if face == "" {
		face = define.DefaultFace
	}
	name := ClipName(cue.Arms)

	action, ok := p.mixer.Action(name)

	p.mu.Lock()
	p.face = face
	if !ok {
		p.mu.Unlock()
		p.logger.Error("❌ 找不到动画剪辑", "clip", name, "error", fmt.Errorf("%w: %s", ErrCueNotResolvable, name))
		done()
		return
	}
	active := ""
	if p.current != nil {
		active = p.current.Clip().Name
	}
	plan := PlanTransition(active, name, p.fade)
	prev := p.current
	p.current = action
	p.mu.Unlock()

	// 先 Reset 再注册监听，旧一轮的 finished 不会落到本次回调上
	switch plan.Kind {
	case TransitionCut:
		action.Reset()
	default:
		if prev != nil {
			prev.FadeOut(plan.Fade)
		}
		action.Reset().FadeIn(plan.Fade)
	}

	var once sync.Once
	var id uint64
	id = p.mixer.On(func(e FinishedEvent) {
		if e.Action != action {
			return
		}
		once.Do(func() {
			p.mixer.Off(id)
			done()
		})
	})
	action.Play()

	p.logger.Info("🎞️ 播放剪辑", "clip", name, "face", face, "mode", string(plan.Kind))
	if p.hook != nil {
		p.hook(Frame{
			Cue:         playback.Cue{Arms: cue.Arms, Face: face},
			Transition:  plan,
			FaceTexture: p.FaceTexture(face),
			At:          time.Now(),
		})
	}
}
