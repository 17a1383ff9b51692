package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

func (c *Config) normalize() {
	c.Server.GinMode = strings.ToLower(strings.TrimSpace(c.Server.GinMode))
	c.Translator.Mode = strings.ToLower(strings.TrimSpace(c.Translator.Mode))
	c.Renderer.Mode = strings.ToLower(strings.TrimSpace(c.Renderer.Mode))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Translator.URL = strings.TrimRight(strings.TrimSpace(c.Translator.URL), "/")
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("server.gin_mode must be %s, %s or %s, got %q", gin.DebugMode, gin.ReleaseMode, gin.TestMode, c.Server.GinMode)
	}
	switch c.Translator.Mode {
	case TranslatorLocal:
	case TranslatorRemote:
		if c.Translator.URL == "" {
			return errors.New("translator.url must be set when translator.mode is remote")
		}
	default:
		return fmt.Errorf("translator.mode must be %q or %q, got %q", TranslatorLocal, TranslatorRemote, c.Translator.Mode)
	}
	if c.Translator.TimeoutMs < 0 {
		return errors.New("translator.timeout_ms must not be negative")
	}
	if c.Renderer.Mode == "" {
		return errors.New("renderer.mode must be set")
	}
	if c.Renderer.FadeSeconds < 0 {
		return errors.New("renderer.fade_seconds must not be negative")
	}
	if c.Playback.DispatchTimeoutMs < 0 {
		return errors.New("playback.dispatch_timeout_ms must not be negative")
	}
	switch c.Log.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("log.format must be console, json or auto, got %q", c.Log.Format)
	}
	return nil
}
