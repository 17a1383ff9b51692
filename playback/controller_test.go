package playback

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// recordingSink 记录每次派发，完成回调由测试手动触发
type recordingSink struct {
	mu    sync.Mutex
	cues  []Cue
	dones []func()
}

func (s *recordingSink) Dispatch(cue Cue, done func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cues = append(s.cues, cue)
	s.dones = append(s.dones, done)
}

func (s *recordingSink) complete(t *testing.T, i int) {
	t.Helper()
	s.mu.Lock()
	if i >= len(s.dones) {
		s.mu.Unlock()
		t.Fatalf("dispatch %d does not exist (have %d)", i, len(s.dones))
	}
	done := s.dones[i]
	s.mu.Unlock()
	done()
}

func (s *recordingSink) arms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cues))
	for i, c := range s.cues {
		out[i] = c.Arms
	}
	return out
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cues)
}

type statusLog struct {
	mu       sync.Mutex
	statuses []Status
}

func (l *statusLog) observe(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, s)
}

func (l *statusLog) all() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Status, len(l.statuses))
	copy(out, l.statuses)
	return out
}

func (l *statusLog) last() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.statuses) == 0 {
		return ""
	}
	return l.statuses[len(l.statuses)-1]
}

func newTestController(opts ...Option) (*Controller, *recordingSink, *statusLog) {
	sink := &recordingSink{}
	log := &statusLog{}
	opts = append([]Option{WithSink(sink), WithObserver(log.observe)}, opts...)
	return New(opts...), sink, log
}

func cue(arms string) Cue { return Cue{Arms: arms, Face: "F_" + arms} }

func TestNewControllerStartsStopped(t *testing.T) {
	c, sink, log := newTestController()

	snap := c.Snapshot()
	if snap.State != StateStopped {
		t.Fatalf("expected stopped, got %s", snap.State)
	}
	if snap.Status != StatusStopped || snap.Length != 0 {
		t.Fatalf("unexpected initial snapshot: %#v", snap)
	}
	if sink.count() != 0 || len(log.all()) != 0 {
		t.Fatal("constructor must not dispatch or notify")
	}
}

func TestDispatchOrderIsFIFO(t *testing.T) {
	c, sink, _ := newTestController()

	want := []string{"A", "B", "C", "D"}
	for _, a := range want {
		c.Enqueue(cue(a))
	}
	if sink.count() != 0 {
		t.Fatal("enqueue while stopped must not dispatch")
	}

	c.Play()
	for i := range want {
		sink.complete(t, i)
	}

	got := sink.arms()
	if !reflect.DeepEqual(got, append(want, "IDLE")) {
		t.Fatalf("unexpected dispatch order: %v", got)
	}
}

func TestTwoCueScenarioStatusSequence(t *testing.T) {
	c, sink, log := newTestController()

	c.Enqueue(Cue{Arms: "A", Face: "F1"})
	c.Enqueue(Cue{Arms: "B", Face: "F2"})
	c.Play()

	if got := sink.arms(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("expected only A in flight, got %v", got)
	}
	wantPrefix := []Status{StatusNotEmpty, StatusNotEmpty, StatusNotEmpty}
	if got := log.all(); !reflect.DeepEqual(got, wantPrefix) {
		t.Fatalf("unexpected statuses before first completion: %v", got)
	}

	sink.complete(t, 0)
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("expected B after A, got %v", got)
	}
	if log.last() != StatusEmpty {
		t.Fatalf("expected empty when B dispatched, got %s", log.last())
	}

	sink.complete(t, 1)
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"A", "B", "IDLE"}) {
		t.Fatalf("expected rest pose after B, got %v", got)
	}
	want := []Status{StatusNotEmpty, StatusNotEmpty, StatusNotEmpty, StatusEmpty, StatusEmpty}
	if got := log.all(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected status sequence: %v", got)
	}

	// 休息姿态的完成回调是终结性的
	sink.complete(t, 2)
	if sink.count() != 3 {
		t.Fatalf("rest completion must not advance, dispatches=%v", sink.arms())
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle, got %s", c.State())
	}
}

func TestPlayOnEmptyQueueDispatchesRestOnce(t *testing.T) {
	c, sink, log := newTestController()

	c.Play()
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"IDLE"}) {
		t.Fatalf("expected a single rest dispatch, got %v", got)
	}
	if log.last() != StatusEmpty {
		t.Fatalf("expected empty status, got %v", log.all())
	}

	sink.complete(t, 0)
	if sink.count() != 1 {
		t.Fatalf("rest completion recursed: %v", sink.arms())
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle, got %s", c.State())
	}
}

func TestEnqueueWhileIdleDispatchesImmediately(t *testing.T) {
	c, sink, _ := newTestController()
	c.Play()
	sink.complete(t, 0)

	c.Enqueue(cue("X"))
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"IDLE", "X"}) {
		t.Fatalf("expected exactly one dispatch of X, got %v", got)
	}
	if c.State() != StateDispatching {
		t.Fatalf("expected dispatching, got %s", c.State())
	}
}

func TestEnqueueWhileRestPoseInFlightStillDispatches(t *testing.T) {
	c, sink, _ := newTestController()
	c.Play() // 休息姿态在途，但不占用播放槽

	c.Enqueue(cue("X"))
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"IDLE", "X"}) {
		t.Fatalf("unexpected dispatches: %v", got)
	}

	// 迟到的休息姿态完成不能推进 X 之后的队列
	c.Enqueue(cue("Y"))
	sink.complete(t, 0)
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"IDLE", "X"}) {
		t.Fatalf("rest completion advanced the queue: %v", got)
	}
	sink.complete(t, 1)
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"IDLE", "X", "Y"}) {
		t.Fatalf("expected Y after X, got %v", got)
	}
}

func TestPauseGatesEnqueue(t *testing.T) {
	c, sink, _ := newTestController()
	c.Play()
	sink.complete(t, 0)

	c.Pause()
	c.Enqueue(cue("X"))
	if sink.count() != 1 {
		t.Fatalf("paused controller dispatched: %v", sink.arms())
	}

	c.Play()
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"IDLE", "X"}) {
		t.Fatalf("expected X after play, got %v", got)
	}
}

func TestPauseDoesNotInterruptInFlightCue(t *testing.T) {
	c, sink, _ := newTestController()
	c.Enqueue(cue("X"))
	c.Enqueue(cue("Y"))
	c.Play()

	c.Pause()
	if c.State() != StatePaused {
		t.Fatalf("expected paused, got %s", c.State())
	}
	snap := c.Snapshot()
	if snap.Current == nil || snap.Current.Arms != "X" {
		t.Fatalf("X must still be in flight: %#v", snap)
	}

	sink.complete(t, 0)
	if sink.count() != 1 {
		t.Fatalf("completion while paused advanced: %v", sink.arms())
	}
	snap = c.Snapshot()
	if snap.State != StatePaused || snap.Length != 1 || snap.Current != nil {
		t.Fatalf("unexpected snapshot after paused completion: %#v", snap)
	}

	c.Play()
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"X", "Y"}) {
		t.Fatalf("expected Y on resume, got %v", got)
	}
}

func TestResumeWhileCueStillInFlightWaitsForCompletion(t *testing.T) {
	c, sink, _ := newTestController()
	c.Enqueue(cue("X"))
	c.Enqueue(cue("Y"))
	c.Play()
	c.Pause()
	c.Play()

	if sink.count() != 1 {
		t.Fatalf("resume must not double-dispatch: %v", sink.arms())
	}
	if c.State() != StateDispatching {
		t.Fatalf("expected dispatching, got %s", c.State())
	}

	sink.complete(t, 0)
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"X", "Y"}) {
		t.Fatalf("expected Y after X, got %v", got)
	}
}

func TestStopAlwaysResets(t *testing.T) {
	cases := []struct {
		name  string
		setup func(c *Controller, sink *recordingSink)
	}{
		{"stopped", func(c *Controller, sink *recordingSink) {}},
		{"stopped_with_queue", func(c *Controller, sink *recordingSink) {
			c.Enqueue(cue("A"))
		}},
		{"paused", func(c *Controller, sink *recordingSink) {
			c.Enqueue(cue("A"))
			c.Enqueue(cue("B"))
			c.Play()
			c.Pause()
		}},
		{"idle", func(c *Controller, sink *recordingSink) {
			c.Play()
		}},
		{"dispatching", func(c *Controller, sink *recordingSink) {
			c.Enqueue(cue("A"))
			c.Enqueue(cue("B"))
			c.Play()
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, sink, log := newTestController()
			tc.setup(c, sink)
			before := sink.count()

			c.Stop()

			if log.last() != StatusStopped {
				t.Fatalf("expected stopped status, got %v", log.all())
			}
			after := sink.arms()[before:]
			if !reflect.DeepEqual(after, []string{"IDLE"}) {
				t.Fatalf("expected exactly one rest dispatch, got %v", after)
			}
			snap := c.Snapshot()
			if snap.State != StateStopped || snap.Length != 0 || snap.Current != nil {
				t.Fatalf("unexpected snapshot after stop: %#v", snap)
			}
		})
	}
}

func TestStopDiscardsCompletionOfInFlightCue(t *testing.T) {
	c, sink, _ := newTestController()
	c.Enqueue(cue("X"))
	c.Play()

	c.Stop()
	c.Play()
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"X", "IDLE", "IDLE"}) {
		t.Fatalf("unexpected dispatches: %v", got)
	}

	// X 迟到的完成回调不能造成额外推进
	sink.complete(t, 0)
	if sink.count() != 3 {
		t.Fatalf("stale completion caused a phantom advance: %v", sink.arms())
	}
	if c.Snapshot().Stale != 1 {
		t.Fatalf("expected one stale completion, got %d", c.Snapshot().Stale)
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle, got %s", c.State())
	}
}

func TestClearDoesNotDispatchRest(t *testing.T) {
	c, sink, log := newTestController()
	c.Enqueue(cue("A"))
	c.Enqueue(cue("B"))
	c.Play()

	c.Clear()
	if sink.count() != 1 {
		t.Fatalf("clear must not dispatch: %v", sink.arms())
	}
	if log.last() != StatusStopped {
		t.Fatalf("expected stopped status, got %s", log.last())
	}
	if snap := c.Snapshot(); snap.State != StateStopped || snap.Length != 0 {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}

	sink.complete(t, 0)
	if sink.count() != 1 {
		t.Fatalf("completion after clear advanced: %v", sink.arms())
	}
}

func TestPlayIsIdempotentWhileRunning(t *testing.T) {
	c, sink, log := newTestController()
	c.Enqueue(cue("A"))
	c.Enqueue(cue("B"))
	c.Play()

	before := c.Snapshot()
	statuses := len(log.all())
	c.Play()
	c.Play()
	after := c.Snapshot()

	if !reflect.DeepEqual(before, after) {
		t.Fatalf("play changed state:\nbefore %#v\nafter  %#v", before, after)
	}
	if sink.count() != 1 || len(log.all()) != statuses {
		t.Fatal("play while dispatching must not dispatch or notify")
	}

	sink.complete(t, 0)
	sink.complete(t, 1)
	before = c.Snapshot()
	c.Play()
	if after := c.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("play while idle changed state: %#v", after)
	}
}

func TestSynchronousSinkDrainsIteratively(t *testing.T) {
	var order []string
	sink := SinkFunc(func(cue Cue, done func()) {
		order = append(order, cue.Arms)
		done()
	})
	log := &statusLog{}
	c := New(WithSink(sink), WithObserver(log.observe))

	const n = 20000
	for i := 0; i < n; i++ {
		c.Enqueue(cue(fmt.Sprintf("G%d", i)))
	}
	c.Play()

	if len(order) != n+1 {
		t.Fatalf("expected %d dispatches, got %d", n+1, len(order))
	}
	for i := 0; i < n; i++ {
		if order[i] != fmt.Sprintf("G%d", i) {
			t.Fatalf("order broken at %d: %s", i, order[i])
		}
	}
	if order[n] != "IDLE" {
		t.Fatalf("expected rest pose last, got %s", order[n])
	}
	if c.State() != StateIdle || log.last() != StatusEmpty {
		t.Fatalf("unexpected final state %s / %s", c.State(), log.last())
	}
}

func TestStopFromInsideSinkBeforeCompletion(t *testing.T) {
	var c *Controller
	var dispatched []string
	sink := SinkFunc(func(cue Cue, done func()) {
		dispatched = append(dispatched, cue.Arms)
		if cue.Arms == "B" {
			c.Stop()
		}
		done()
	})
	log := &statusLog{}
	c = New(WithSink(sink), WithObserver(log.observe))

	c.Enqueue(cue("A"))
	c.Enqueue(cue("B"))
	c.Enqueue(cue("C"))
	c.Play()

	if !reflect.DeepEqual(dispatched, []string{"A", "B", "IDLE"}) {
		t.Fatalf("unexpected dispatches: %v", dispatched)
	}
	snap := c.Snapshot()
	if snap.State != StateStopped || snap.Length != 0 || snap.Status != StatusStopped {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
	if snap.Stale != 1 {
		t.Fatalf("B's completion should be discarded, stale=%d", snap.Stale)
	}
}

func TestEnqueueFromObserverIsSafe(t *testing.T) {
	var c *Controller
	sink := &recordingSink{}
	refilled := false
	c = New(WithSink(sink), WithObserver(func(s Status) {
		_ = c.Snapshot()
		if s == StatusEmpty && !refilled {
			refilled = true
			c.Enqueue(cue("R"))
		}
	}))

	c.Enqueue(cue("A"))
	c.Play()

	// A 派发时队列变空 -> 观察者补充 R
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Fatalf("unexpected dispatches: %v", got)
	}
	if c.Snapshot().Length != 1 {
		t.Fatalf("expected refill to be queued, got %#v", c.Snapshot())
	}
	sink.complete(t, 0)
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"A", "R"}) {
		t.Fatalf("expected refilled cue next, got %v", got)
	}
}

func TestSubscribeReplacesObserver(t *testing.T) {
	c := New()
	first, second := &statusLog{}, &statusLog{}

	cancelFirst := c.Subscribe(first.observe)
	c.Enqueue(cue("A"))
	cancelSecond := c.Subscribe(second.observe)
	c.Enqueue(cue("B"))

	if len(first.all()) != 1 || len(second.all()) != 1 {
		t.Fatalf("expected single-slot delivery, first=%v second=%v", first.all(), second.all())
	}

	// 旧订阅者的取消函数不能清掉新订阅者
	cancelFirst()
	c.Enqueue(cue("C"))
	if len(second.all()) != 2 {
		t.Fatalf("stale cancel removed the active observer: %v", second.all())
	}

	cancelSecond()
	c.Enqueue(cue("D"))
	if len(second.all()) != 2 {
		t.Fatalf("observer still notified after cancel: %v", second.all())
	}
}

func TestDispatchTimeoutAdvancesStuckCue(t *testing.T) {
	c, sink, _ := newTestController(WithDispatchTimeout(10 * time.Millisecond))
	c.Enqueue(cue("X"))
	c.Enqueue(cue("Y"))
	c.Play()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("watchdog never advanced: %v", sink.arms())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// 超时后迟到的真实完成被 once 吞掉
	sink.complete(t, 0)
	if got := sink.arms()[:2]; !reflect.DeepEqual(got, []string{"X", "Y"}) {
		t.Fatalf("unexpected dispatches: %v", got)
	}
	sink.complete(t, 1)
	if got := sink.arms(); !reflect.DeepEqual(got, []string{"X", "Y", "IDLE"}) {
		t.Fatalf("late completion double-advanced: %v", got)
	}
}

func TestMissingSinkDoesNotStall(t *testing.T) {
	log := &statusLog{}
	c := New(WithObserver(log.observe))

	c.Enqueue(cue("A"))
	c.Enqueue(cue("B"))
	c.Play()

	snap := c.Snapshot()
	if snap.State != StateIdle || snap.Length != 0 || snap.Dispatched != 2 {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
	if log.last() != StatusEmpty {
		t.Fatalf("expected empty, got %v", log.all())
	}
}

func TestSetSinkAppliesToLaterDispatches(t *testing.T) {
	c, first, _ := newTestController()
	second := &recordingSink{}

	c.Enqueue(cue("A"))
	c.Enqueue(cue("B"))
	c.Play()
	c.SetSink(second)
	first.complete(t, 0)

	if first.count() != 1 || !reflect.DeepEqual(second.arms(), []string{"B"}) {
		t.Fatalf("first=%v second=%v", first.arms(), second.arms())
	}
}

func TestConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	sink := SinkFunc(func(cue Cue, done func()) {
		mu.Lock()
		order = append(order, cue.Arms)
		mu.Unlock()
		go done()
	})
	c := New(WithSink(sink))
	c.Play()

	const producers, perProducer = 8, 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				c.Enqueue(Cue{Arms: fmt.Sprintf("%d-%d", p, i)})
			}
		}(p)
	}
	wg.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for {
		snap := c.Snapshot()
		if snap.Dispatched == producers*perProducer && snap.State == StateIdle {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue never drained: %#v", snap)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	next := make(map[int]int)
	for _, arms := range order {
		var p, i int
		if _, err := fmt.Sscanf(arms, "%d-%d", &p, &i); err != nil {
			continue // 休息姿态
		}
		if i != next[p] {
			t.Fatalf("producer %d out of order: got %d want %d", p, i, next[p])
		}
		next[p]++
	}
}

func TestSettleWaitsForQueuedOperations(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var block sync.Once
	sink := &recordingSink{}
	c := New(WithSink(sink), WithObserver(func(s Status) {
		if s == StatusEmpty {
			block.Do(func() {
				close(entered)
				<-release
			})
		}
	}))

	if err := c.Settle(context.Background()); err != nil {
		t.Fatalf("idle controller should settle immediately: %v", err)
	}

	c.Enqueue(cue("A"))
	go c.Play()
	<-entered

	// 另一个 goroutine 正在排空，Stop 只是入队
	c.Stop()
	if got := c.State(); got != StateDispatching {
		t.Fatalf("stop should not apply while observer blocks, state=%s", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Settle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("settle should time out while draining, err=%v", err)
	}

	close(release)
	if err := c.Settle(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if snap.State != StateStopped || snap.Status != StatusStopped || snap.Length != 0 {
		t.Fatalf("after settle: %#v", snap)
	}
}
