package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述服务运行参数：日志、缓存根目录、注册表位置与上游抓取策略。
type GlobalConfig struct {
	ListenPort             int      `mapstructure:"ListenPort"`
	LogLevel               string   `mapstructure:"LogLevel"`
	LogFilePath            string   `mapstructure:"LogFilePath"`
	LogMaxSize             int      `mapstructure:"LogMaxSize"`
	LogMaxBackups          int      `mapstructure:"LogMaxBackups"`
	LogCompress            bool     `mapstructure:"LogCompress"`
	StoragePath            string   `mapstructure:"StoragePath"`
	RegistryPath           string   `mapstructure:"RegistryPath"`
	CatalogProvider        string   `mapstructure:"CatalogProvider"`
	CatalogURL             string   `mapstructure:"CatalogURL"`
	UserAgent              string   `mapstructure:"UserAgent"`
	Proxy                  string   `mapstructure:"Proxy"`
	UpstreamTimeout        Duration `mapstructure:"UpstreamTimeout"`
	MaxRetries             int      `mapstructure:"MaxRetries"`
	InitialBackoff         Duration `mapstructure:"InitialBackoff"`
	MaxConcurrentDownloads int      `mapstructure:"MaxConcurrentDownloads"`
}

// Config 是 TOML 文件映射的整体结构，所有字段均位于顶层。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
}

// DefaultUserAgent 让字体目录返回 woff2 变体；过旧的 UA 会被降级为 ttf。
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// RetryPolicy 汇总 CacheManager 使用的重试参数。
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// Retry 返回生效的重试配置。
func (c *Config) Retry() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     c.Global.MaxRetries,
		InitialBackoff: c.Global.InitialBackoff.DurationValue(),
	}
}
