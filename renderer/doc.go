// Package renderer 是播放控制器的渲染端实现。
//
// PlanTransition 定义了剪辑切换策略：同一剪辑硬切从头播放，
// 不同剪辑按固定时长淡出旧剪辑、淡入新剪辑；两者都只播放一次并停在最后一帧。
// Mixer 模拟一个按剪辑管理 Action 的动画混合器，Player 在其上实现
// playback.Sink，并且只在"自己的" Action 结束时调用完成回调。
package renderer
