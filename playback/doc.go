// Package playback 实现手语动画的排队与播放状态机。
//
// Controller 拥有一个 FIFO 的 Cue 队列和一个显式的四值运行状态
// (Stopped / Paused / Idle / Dispatching)。它每次只向 Sink 派发一个 Cue，
// 等待 Sink 调用完成回调后再推进下一个；队列播完时派发休息姿态作为兜底。
//
// 所有状态迁移都在同一个逻辑线程上串行执行：公开操作先进入收件箱，
// 由当前持有"排空"角色的 goroutine 依次处理。Sink 与 Observer 的调用发生
// 在锁外，因此在回调内部再次调用 Enqueue / Stop 等操作是安全的，
// 不会递归也不会死锁。
//
// 因此公开操作是异步返回的：如果另一个 goroutine 正在排空（例如正在执行
// 耗时的 Observer），Stop / Play / Enqueue 只把事件放进收件箱就返回，
// 此时读到的 State / Snapshot 可能还是旧值。需要读到操作结果的调用方
// (如 HTTP 接口) 先调用 Settle。
package playback
