package translate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSchema = `CREATE TABLE IF NOT EXISTS translations (
	text_key   TEXT NOT NULL,
	vocab_key  TEXT NOT NULL,
	tokens     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (text_key, vocab_key)
)`

// Cache 翻译结果的 SQLite 缓存。同一段文本在同一词表下只请求一次后端
type Cache struct {
	db *sql.DB
}

// OpenCache 打开（必要时创建）缓存数据库
func OpenCache(path string) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close 关闭数据库
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get 查找缓存。未命中时 ok 为 false
func (c *Cache) Get(ctx context.Context, text string, words []string) (tokens []string, ok bool, err error) {
	var joined string
	err = c.db.QueryRowContext(ctx,
		`SELECT tokens FROM translations WHERE text_key = ? AND vocab_key = ?`,
		cacheKey(text), vocabKey(words),
	).Scan(&joined)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query translation: %w", err)
	}
	return strings.Fields(joined), true, nil
}

// Put 写入缓存，已有记录会被替换
func (c *Cache) Put(ctx context.Context, text string, words []string, tokens []string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translations (text_key, vocab_key, tokens, created_at) VALUES (?, ?, ?, ?)`,
		cacheKey(text), vocabKey(words), strings.Join(tokens, " "), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert translation: %w", err)
	}
	return nil
}

// Len 缓存条数
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count translations: %w", err)
	}
	return n, nil
}

// cacheKey 大小写和空白不同的同一句话共用一条缓存
func cacheKey(text string) string {
	return strings.Join(strings.Fields(lower.String(Normalize(text))), " ")
}

func vocabKey(words []string) string {
	sum := sha256.Sum256([]byte(strings.Join(words, "\x00")))
	return hex.EncodeToString(sum[:8])
}

// CachedTranslator 先查缓存，未命中再调用下游翻译器
type CachedTranslator struct {
	next   Translator
	cache  *Cache
	logger *slog.Logger
}

// NewCachedTranslator 包装一个 Translator
func NewCachedTranslator(next Translator, cache *Cache, logger *slog.Logger) *CachedTranslator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedTranslator{next: next, cache: cache, logger: logger}
}

func (t *CachedTranslator) Translate(ctx context.Context, text string, words []string) ([]string, error) {
	tokens, ok, err := t.cache.Get(ctx, text, words)
	if err != nil {
		// 缓存故障不影响翻译
		t.logger.Warn("⚠️ 读取翻译缓存失败", "error", err)
	} else if ok {
		t.logger.Debug("💾 命中翻译缓存", "tokens", len(tokens))
		return tokens, nil
	}

	tokens, err = t.next.Translate(ctx, text, words)
	if err != nil {
		return nil, err
	}
	if err := t.cache.Put(ctx, text, words, tokens); err != nil {
		t.logger.Warn("⚠️ 写入翻译缓存失败", "error", err)
	}
	return tokens, nil
}
