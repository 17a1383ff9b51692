package renderer

import (
	"sync/atomic"
	"testing"
	"time"

	"avatar/playback"
)

func newTestPlayer(t *testing.T, clips ...string) (*Player, *manualScheduler, *[]Frame) {
	t.Helper()
	sched := &manualScheduler{}
	m := NewMixer(sched, nil)
	for _, name := range clips {
		m.AddClip(Clip{Name: ClipName(name), Duration: time.Second})
	}
	frames := &[]Frame{}
	p := NewPlayer(m,
		WithFacesDir("assets/faces"),
		WithFrameHook(func(f Frame) { *frames = append(*frames, f) }),
	)
	return p, sched, frames
}

func TestPlayerCutAndCrossfade(t *testing.T) {
	p, sched, frames := newTestPlayer(t, "HOLA", "IDLE")

	p.Dispatch(playback.Cue{Arms: "HOLA", Face: "S"}, func() {})
	p.Dispatch(playback.Cue{Arms: "HOLA", Face: "S"}, func() {})
	p.Dispatch(playback.Cue{Arms: "IDLE"}, func() {})

	want := []TransitionKind{TransitionCrossfade, TransitionCut, TransitionCrossfade}
	if len(*frames) != len(want) {
		t.Fatalf("frames = %d, want %d", len(*frames), len(want))
	}
	for i, k := range want {
		if got := (*frames)[i].Transition.Kind; got != k {
			t.Errorf("frame %d kind = %s, want %s", i, got, k)
		}
	}
	if sched.count() != 3 {
		t.Errorf("scheduled %d timers, want 3", sched.count())
	}
	if p.Current() != "Armature|IDLE" {
		t.Errorf("current = %q", p.Current())
	}
	if p.Face() != "N" {
		t.Errorf("empty face should fall back to N, got %q", p.Face())
	}
	if got := (*frames)[0].FaceTexture; got != "assets/faces/S.png" {
		t.Errorf("face texture = %q", got)
	}
}

func TestPlayerIgnoresOtherClipFinishing(t *testing.T) {
	p, sched, _ := newTestPlayer(t, "HOLA", "GRACIAS")

	var first, second int32
	p.Dispatch(playback.Cue{Arms: "HOLA"}, func() { atomic.AddInt32(&first, 1) })
	p.Dispatch(playback.Cue{Arms: "GRACIAS"}, func() { atomic.AddInt32(&second, 1) })

	// HOLA 淡出后走完，只完成第一个 Cue
	sched.fire(0)
	if atomic.LoadInt32(&second) != 0 {
		t.Fatal("fading-out clip must not complete the new cue")
	}
	if atomic.LoadInt32(&first) != 1 {
		t.Fatalf("first done = %d, want 1", first)
	}

	sched.fire(1)
	if atomic.LoadInt32(&second) != 1 {
		t.Fatalf("second done = %d, want 1", second)
	}
}

func TestPlayerSameClipRestartDropsOldRun(t *testing.T) {
	p, sched, _ := newTestPlayer(t, "HOLA")

	var first, second int32
	p.Dispatch(playback.Cue{Arms: "HOLA"}, func() { atomic.AddInt32(&first, 1) })
	p.Dispatch(playback.Cue{Arms: "HOLA"}, func() { atomic.AddInt32(&second, 1) })

	// 第一轮被 Reset，旧定时器不再产生事件
	sched.fire(0)
	if atomic.LoadInt32(&second) != 0 {
		t.Fatal("old run must not complete the restarted cue")
	}

	sched.fire(1)
	if atomic.LoadInt32(&second) != 1 {
		t.Fatalf("second done = %d, want 1", second)
	}
	// 两个监听都在同一个 Action 上，第一个也会在这次 finished 时完成
	if atomic.LoadInt32(&first) != 1 {
		t.Fatalf("first done = %d, want 1", first)
	}
}

func TestPlayerDoneExactlyOnce(t *testing.T) {
	p, sched, _ := newTestPlayer(t, "HOLA")

	var calls int32
	p.Dispatch(playback.Cue{Arms: "HOLA"}, func() { atomic.AddInt32(&calls, 1) })
	sched.fire(0)
	sched.fire(0)

	if calls != 1 {
		t.Fatalf("done called %d times", calls)
	}
	if p.mixer.Listeners() != 0 {
		t.Errorf("listener not removed after completion")
	}
}

func TestPlayerUnresolvableCue(t *testing.T) {
	p, sched, frames := newTestPlayer(t, "IDLE")

	called := false
	p.Dispatch(playback.Cue{Arms: "NOPE"}, func() { called = true })

	if !called {
		t.Fatal("unresolvable cue must complete immediately")
	}
	if sched.count() != 0 || len(*frames) != 0 {
		t.Error("unresolvable cue must not start a clip")
	}
}

func TestPlayerDrivesController(t *testing.T) {
	p, sched, frames := newTestPlayer(t, "HOLA", "GRACIAS", "IDLE")

	ctrl := playback.New(playback.WithSink(p))
	ctrl.Enqueue(playback.Cue{Arms: "HOLA", Face: "S"})
	ctrl.Enqueue(playback.Cue{Arms: "GRACIAS", Face: "A"})
	ctrl.Play()

	for i := 0; i < 3; i++ {
		sched.fireLive()
	}

	var got []string
	for _, f := range *frames {
		got = append(got, f.Transition.To)
	}
	want := []string{"Armature|HOLA", "Armature|GRACIAS", "Armature|IDLE"}
	if len(got) != len(want) {
		t.Fatalf("frames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frames = %v, want %v", got, want)
		}
	}
	if ctrl.State() != playback.StateIdle {
		t.Errorf("state = %s, want idle", ctrl.State())
	}
}

func TestFactory(t *testing.T) {
	sink, err := New(ModeSimulated, Options{Scheduler: &manualScheduler{}})
	if err != nil {
		t.Fatal(err)
	}
	p, ok := sink.(*Player)
	if !ok {
		t.Fatalf("simulated sink is %T", sink)
	}
	if _, ok := p.mixer.Action(ClipName("")); !ok {
		t.Error("simulated renderer must always have the rest clip")
	}

	if _, err := New("hologram", Options{}); err == nil {
		t.Error("unknown mode should fail")
	}

	Register("test-only", func(Options) (playback.Sink, error) { return playback.SinkFunc(func(_ playback.Cue, done func()) { done() }), nil })
	found := false
	for _, m := range Modes() {
		if m == "test-only" {
			found = true
		}
	}
	if !found {
		t.Errorf("modes = %v", Modes())
	}
}
