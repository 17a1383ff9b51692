package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"avatar/playback"
)

// ErrEmptyText 待翻译文本为空
var ErrEmptyText = errors.New("text is empty")

// Queue 流水线需要的控制器操作
type Queue interface {
	Enqueue(cue playback.Cue)
	Play()
	Clear()
}

// Lexicon 流水线需要的词典操作
type Lexicon interface {
	Words() []string
	FaceFor(arms string) string
}

// Pipeline 文本 → 翻译 → 查表情 → 入队
type Pipeline struct {
	queue      Queue
	lexicon    Lexicon
	translator Translator
	logger     *slog.Logger

	mu     sync.Mutex
	tokens []string
}

// NewPipeline 创建流水线
func NewPipeline(queue Queue, lexicon Lexicon, translator Translator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		queue:      queue,
		lexicon:    lexicon,
		translator: translator,
		logger:     logger,
	}
}

// Load 清空队列后翻译文本并把结果全部入队，不会自动开始播放。
// 翻译失败时队列保持清空，上一次的结果仍可用于 Restart。
func (p *Pipeline) Load(ctx context.Context, text string) ([]string, error) {
	p.queue.Clear()

	text = Normalize(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	tokens, err := p.translator.Translate(ctx, text, p.lexicon.Words())
	if err != nil {
		p.logger.Error("❌ 文本翻译失败", "error", err)
		return nil, fmt.Errorf("翻译文本失败: %w", err)
	}

	p.mu.Lock()
	p.tokens = append([]string(nil), tokens...)
	p.mu.Unlock()

	p.enqueueAll(tokens)
	p.logger.Info("📝 文本已加载", "tokens", len(tokens))
	return tokens, nil
}

// Restart 清空队列，重新入队上一次加载的结果并开始播放。返回入队数量
func (p *Pipeline) Restart() int {
	tokens := p.Tokens()
	p.queue.Clear()
	p.enqueueAll(tokens)
	p.queue.Play()
	p.logger.Info("🔄 重新播放", "tokens", len(tokens))
	return len(tokens)
}

// Enqueue 入队单个手势，表情从词典查找
func (p *Pipeline) Enqueue(arms string) playback.Cue {
	cue := playback.Cue{Arms: arms, Face: p.lexicon.FaceFor(arms)}
	p.queue.Enqueue(cue)
	return cue
}

// Tokens 上一次成功加载的结果
func (p *Pipeline) Tokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tokens...)
}

func (p *Pipeline) enqueueAll(tokens []string) {
	for _, arms := range tokens {
		p.Enqueue(arms)
	}
}
