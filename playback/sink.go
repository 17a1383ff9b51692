package playback

// Sink 负责真正播放一个 Cue 的协作者（渲染端）。
//
// done 必须被恰好调用一次，可以同步也可以异步，成功或失败都要调用；
// 否则控制器会一直停在 Dispatching。
type Sink interface {
	Dispatch(cue Cue, done func())
}

// SinkFunc 函数形式的 Sink
type SinkFunc func(cue Cue, done func())

func (f SinkFunc) Dispatch(cue Cue, done func()) { f(cue, done) }

// Observer 接收队列状态变化的订阅者
type Observer func(Status)
