package renderer

import "time"

// Timer 可取消的定时任务
type Timer interface {
	Stop() bool
}

// Scheduler 定时器来源，测试中可替换成手动触发的实现
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealScheduler 基于 time.AfterFunc 的调度器
func RealScheduler() Scheduler { return realScheduler{} }
