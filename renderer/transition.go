package renderer

import (
	"strings"
	"time"

	"avatar/define"
)

// TransitionKind 剪辑切换方式
type TransitionKind string

const (
	TransitionCut       TransitionKind = "cut"       // 同一剪辑：从头重播，不做过渡
	TransitionCrossfade TransitionKind = "crossfade" // 不同剪辑：淡出旧的、淡入新的
)

// Transition 一次剪辑切换的计划
type Transition struct {
	From        string         `json:"from,omitempty"`
	To          string         `json:"to"`
	Kind        TransitionKind `json:"mode"`
	Fade        time.Duration  `json:"-"`
	FadeSeconds float64        `json:"fade_seconds"`
	Repetitions int            `json:"repetitions"`
	Clamp       bool           `json:"clamp"`
}

// PlanTransition 根据当前剪辑与请求剪辑决定切换方式
func PlanTransition(active, requested string, fade time.Duration) Transition {
	t := Transition{
		From:        active,
		To:          requested,
		Repetitions: 1,
		Clamp:       true,
	}
	if active != "" && active == requested {
		t.Kind = TransitionCut
		return t
	}
	t.Kind = TransitionCrossfade
	t.Fade = fade
	t.FadeSeconds = fade.Seconds()
	return t
}

// ClipName 把手臂动作 ID 转成骨骼资源中的剪辑名
func ClipName(arms string) string {
	if arms == "" {
		arms = define.DefaultArms
	}
	if strings.HasPrefix(arms, define.ClipPrefix) {
		return arms
	}
	return define.ClipPrefix + arms
}

// FadeDuration 把配置中的秒数转成时长，非正数使用默认值
func FadeDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		seconds = define.DefaultFadeSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}
