package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"avatar/define"
)

// ErrTranslationRejected 翻译后端返回 ok=false 或无法识别的结果
var ErrTranslationRejected = errors.New("translation rejected")

// Translator 把文本翻译成手臂动作 ID 序列。words 是词典中可用的手臂动作
type Translator interface {
	Translate(ctx context.Context, text string, words []string) ([]string, error)
}

// TranslatorFunc 函数形式的 Translator
type TranslatorFunc func(ctx context.Context, text string, words []string) ([]string, error)

func (f TranslatorFunc) Translate(ctx context.Context, text string, words []string) ([]string, error) {
	return f(ctx, text, words)
}

type processRequest struct {
	Text  string   `json:"text"`
	Words []string `json:"words"`
}

// ClientOption 配置 Client
type ClientOption func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client 翻译后端的 HTTP 客户端
type Client struct {
	serviceURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewClient 创建翻译客户端，默认超时 30 秒（后端要调用大模型）
func NewClient(serviceURL string, opts ...ClientOption) *Client {
	c := &Client{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServiceURL 后端地址
func (c *Client) ServiceURL() string { return c.serviceURL }

// Translate 调用 POST /process_text
func (c *Client) Translate(ctx context.Context, text string, words []string) ([]string, error) {
	if words == nil {
		words = []string{}
	}
	jsonData, err := json.Marshal(processRequest{Text: text, Words: words})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败：%w", err)
	}

	url := fmt.Sprintf("%s/process_text", c.serviceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败：%w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败：%w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败：%w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("翻译服务返回错误: %d, %s", resp.StatusCode, string(body))
	}

	tokens, err := parseProcessResponse(body)
	if err != nil {
		return nil, err
	}
	c.logger.Info("🌐 文本翻译完成", "tokens", len(tokens), "elapsed", time.Since(start))
	return tokens, nil
}

// parseProcessResponse 解析 {"ok":true,"processed_text":[...]}。
// processed_text 为字符串时也接受，按 Tokens 规则切分。
func parseProcessResponse(body []byte) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: 响应不是合法 JSON", ErrTranslationRejected)
	}
	if !gjson.GetBytes(body, "ok").Bool() {
		return nil, fmt.Errorf("%w: 后端返回 ok=false", ErrTranslationRejected)
	}

	processed := gjson.GetBytes(body, "processed_text")
	switch {
	case processed.IsArray():
		var tokens []string
		processed.ForEach(func(_, v gjson.Result) bool {
			tokens = append(tokens, Tokens(v.String())...)
			return true
		})
		return tokens, nil
	case processed.Type == gjson.String:
		return Tokens(processed.String()), nil
	default:
		return nil, fmt.Errorf("%w: 缺少 processed_text", ErrTranslationRejected)
	}
}

// Local 离线翻译：直接按 Tokens 规则切分文本，丢弃词典中没有的词。
// 没有配置翻译后端时使用。
type Local struct {
	logger *slog.Logger
}

// NewLocal 创建离线翻译器
func NewLocal(logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Local{logger: logger}
}

func (l *Local) Translate(ctx context.Context, text string, words []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := Tokens(text)
	if len(words) == 0 {
		return tokens, nil
	}

	known := make(map[string]struct{}, len(words))
	for _, w := range words {
		known[w] = struct{}{}
	}
	out := tokens[:0]
	for _, tok := range tokens {
		if _, ok := known[tok]; ok || tok == define.DefaultArms {
			out = append(out, tok)
			continue
		}
		l.logger.Debug("ℹ️ 词典中没有该词，跳过", "token", tok)
	}
	return out, nil
}
