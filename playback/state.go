package playback

import "fmt"

// State 控制器的运行状态
type State int

const (
	StateStopped     State = iota // 暂停且队列被强制清空
	StatePaused                   // 暂停，保留队列
	StateIdle                     // 运行中，队列为空，没有在途 Cue
	StateDispatching              // 运行中，有一个 Cue 在途
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePaused:
		return "paused"
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}

// Running 是否处于非暂停状态
func (s State) Running() bool { return s == StateIdle || s == StateDispatching }

// Status 对外可见的队列状态
type Status string

const (
	StatusEmpty    Status = "empty"
	StatusNotEmpty Status = "not_empty"
	StatusStopped  Status = "stopped"
)

func statusFor(remaining int) Status {
	if remaining > 0 {
		return StatusNotEmpty
	}
	return StatusEmpty
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateStopped, StatePaused, StateIdle, StateDispatching} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
