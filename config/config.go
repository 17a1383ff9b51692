// Package config 读取服务配置：TOML 文件 + AVATAR_ 前缀的环境变量覆盖。
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"avatar/renderer"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "AVATAR_"

// DefaultPath 默认配置文件
const DefaultPath = "avatar.toml"

// Server HTTP 服务
type Server struct {
	Host        string   `toml:"host" env:"HOST"`
	Port        int      `toml:"port" env:"PORT"`
	GinMode     string   `toml:"gin_mode" env:"GIN_MODE"`
	CORSOrigins []string `toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
}

// Lexicon 手势词典
type Lexicon struct {
	Path        string `toml:"path" env:"PATH"` // 为空时使用内置词典
	DefaultFace string `toml:"default_face" env:"DEFAULT_FACE"`
}

// Translator 翻译后端
type Translator struct {
	Mode      string `toml:"mode" env:"MODE"` // local 或 remote
	URL       string `toml:"url" env:"URL"`
	TimeoutMs int    `toml:"timeout_ms" env:"TIMEOUT_MS"`
	CachePath string `toml:"cache_path" env:"CACHE_PATH"` // 为空时不缓存
}

// Renderer 渲染端
type Renderer struct {
	Mode        string  `toml:"mode" env:"MODE"`
	FadeSeconds float64 `toml:"fade_seconds" env:"FADE_SECONDS"`
	FacesDir    string  `toml:"faces_dir" env:"FACES_DIR"`
}

// Playback 播放控制器
type Playback struct {
	DispatchTimeoutMs int `toml:"dispatch_timeout_ms" env:"DISPATCH_TIMEOUT_MS"` // 0 表示不限时
}

// Log 日志
type Log struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// Config 全部配置
type Config struct {
	Server     Server     `toml:"server" envPrefix:"SERVER_"`
	Lexicon    Lexicon    `toml:"lexicon" envPrefix:"LEXICON_"`
	Translator Translator `toml:"translator" envPrefix:"TRANSLATOR_"`
	Renderer   Renderer   `toml:"renderer" envPrefix:"RENDERER_"`
	Playback   Playback   `toml:"playback" envPrefix:"PLAYBACK_"`
	Log        Log        `toml:"log" envPrefix:"LOG_"`
}

// Load 读取配置文件（不存在时使用默认值），再叠加环境变量。
// 返回值 exists 表示配置文件是否存在。
func Load(path string) (*Config, bool, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	exists := true
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, false, fmt.Errorf("read config: %w", err)
	default:
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, exists, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, exists, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, exists, err
	}
	return &cfg, exists, nil
}

// LoadOrCreate 配置文件不存在时先写入默认配置
func LoadOrCreate(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		def := Default()
		if err := Save(path, &def); err != nil {
			return nil, err
		}
	}
	cfg, _, err := Load(path)
	return cfg, err
}

// Save 把配置写成 TOML
func Save(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Marshal 配置的 TOML 文本
func Marshal(cfg *Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// Addr HTTP 监听地址
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Fade 不同剪辑之间的过渡时长
func (c *Config) Fade() time.Duration {
	return renderer.FadeDuration(c.Renderer.FadeSeconds)
}

// DispatchTimeout 派发看门狗，0 表示关闭
func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.Playback.DispatchTimeoutMs) * time.Millisecond
}

// TranslatorTimeout 翻译请求超时
func (c *Config) TranslatorTimeout() time.Duration {
	return time.Duration(c.Translator.TimeoutMs) * time.Millisecond
}
