package config

import (
	"avatar/define"
	"avatar/renderer"
)

const (
	defaultHost              = "0.0.0.0"
	defaultPort              = 9876
	defaultGinMode           = "release"
	defaultTranslatorMode    = TranslatorLocal
	defaultTranslatorURL     = "http://localhost:8000"
	defaultTranslatorTimeout = 30000
	defaultFacesDir          = "faces"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
)

// 翻译模式
const (
	TranslatorLocal  = "local"
	TranslatorRemote = "remote"
)

// Default 默认配置
func Default() Config {
	return Config{
		Server: Server{
			Host:        defaultHost,
			Port:        defaultPort,
			GinMode:     defaultGinMode,
			CORSOrigins: []string{"*"},
		},
		Lexicon: Lexicon{
			DefaultFace: define.DefaultFace,
		},
		Translator: Translator{
			Mode:      defaultTranslatorMode,
			URL:       defaultTranslatorURL,
			TimeoutMs: defaultTranslatorTimeout,
		},
		Renderer: Renderer{
			Mode:        renderer.ModeSimulated,
			FadeSeconds: define.DefaultFadeSeconds,
			FacesDir:    defaultFacesDir,
		},
		Log: Log{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
