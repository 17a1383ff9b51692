package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"avatar/playback"
	"avatar/renderer"
)

// scaledScheduler 按倍速缩短剪辑时长，用于命令行预览
type scaledScheduler struct {
	speed float64
	next  renderer.Scheduler
}

func (s scaledScheduler) AfterFunc(d time.Duration, f func()) renderer.Timer {
	if s.speed > 0 && s.speed != 1 {
		d = time.Duration(float64(d) / s.speed)
	}
	return s.next.AfterFunc(d, f)
}

// printingSink 打印每次派发，并在最终的休息姿态播完后通知结束
type printingSink struct {
	out   io.Writer
	next  playback.Sink
	state func() playback.State

	finishOnce sync.Once
	finished   chan struct{}
}

func (p *printingSink) Dispatch(cue playback.Cue, done func()) {
	// 队列播完后派发的休息姿态发生在 Idle 状态，序列中的 IDLE 手势发生在 Dispatching 状态
	final := cue.IsRest() && p.state() == playback.StateIdle
	if final {
		fmt.Fprintf(p.out, "👋 %s\n", cue)
	} else {
		fmt.Fprintf(p.out, "🎬 %s\n", cue)
	}
	p.next.Dispatch(cue, func() {
		done()
		if final {
			p.finishOnce.Do(func() { close(p.finished) })
		}
	})
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	var (
		arms    []string
		speed   float64
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "play [text...]",
		Short: "在本地模拟渲染端上播放一段文本或手势序列",
		Example: `  avatar play "Hola. Gracias"
  avatar play --arms HOLA,GRACIAS --speed 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" && len(arms) == 0 {
				return errors.New("需要提供文本或 --arms")
			}
			if speed <= 0 {
				return fmt.Errorf("--speed 必须大于 0，当前为 %v", speed)
			}

			cfg, logger, err := ctx.ensure(cmd)
			if err != nil {
				return err
			}
			cfg.Renderer.Mode = renderer.ModeSimulated

			manager, closeTranslator, err := buildManager(cfg, logger, scaledScheduler{speed: speed, next: renderer.RealScheduler()})
			if err != nil {
				return err
			}
			defer closeTranslator()
			defer manager.Close()

			sess, err := manager.Default()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sink := &printingSink{
				out:      out,
				next:     sess.Sink,
				state:    sess.Controller.State,
				finished: make(chan struct{}),
			}
			sess.Controller.SetSink(sink)
			sess.Controller.Subscribe(func(status playback.Status) {
				fmt.Fprintf(out, "📊 %s\n", status)
				sess.Hub.Observe(status)
			})

			if text != "" {
				tokens, err := sess.Pipeline.Load(cmd.Context(), text)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "📝 %s\n", strings.Join(tokens, " "))
			}
			for _, a := range arms {
				if a = strings.TrimSpace(a); a != "" {
					sess.Pipeline.Enqueue(strings.ToUpper(a))
				}
			}
			sess.Controller.Play()

			select {
			case <-sink.finished:
			case <-time.After(timeout):
				sess.Controller.Stop()
				return fmt.Errorf("播放超时 (%s)", timeout)
			case <-cmd.Context().Done():
				sess.Controller.Stop()
				return cmd.Context().Err()
			}

			snap := sess.Controller.Snapshot()
			fmt.Fprintf(out, "✅ 播放完成，共派发 %d 个手势\n", snap.Dispatched)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&arms, "arms", nil, "直接入队的手势，逗号分隔")
	cmd.Flags().Float64Var(&speed, "speed", 1, "播放倍速")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "最长播放时间")
	return cmd
}
