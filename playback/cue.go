package playback

import (
	"fmt"

	"avatar/define"
)

// Cue 一个播放单元：手臂动作 + 面部表情
type Cue struct {
	Arms string `json:"arms"`
	Face string `json:"face"`
}

// RestCue 返回默认休息姿态
func RestCue() Cue {
	return Cue{Arms: define.DefaultArms, Face: define.DefaultFace}
}

// IsRest 是否为休息姿态
func (c Cue) IsRest() bool { return c.Arms == define.DefaultArms }

func (c Cue) String() string { return fmt.Sprintf("%s/%s", c.Arms, c.Face) }
