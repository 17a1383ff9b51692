package define

// 默认姿态：队列播完或被停止后回到的休息动作
const (
	DefaultArms = "IDLE" // 休息手臂动作，同时也是翻译结果中的句号占位符
	DefaultFace = "N"    // 中性表情
)

// ClipPrefix 动画剪辑在骨骼资源中的名称前缀
const ClipPrefix = "Armature|"

// DefaultFadeSeconds 两个不同剪辑之间的默认淡入淡出时长（秒）
const DefaultFadeSeconds = 0.3
