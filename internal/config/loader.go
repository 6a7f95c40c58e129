package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/font-hub/font-hub/internal/catalog"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	if cfg.Global.RegistryPath == "" {
		cfg.Global.RegistryPath = filepath.Join(absStorage, "registry.json")
	} else if absRegistry, err := filepath.Abs(cfg.Global.RegistryPath); err == nil {
		cfg.Global.RegistryPath = absRegistry
	} else {
		return nil, fmt.Errorf("无法解析注册表路径: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./fonts")
	v.SetDefault("RegistryPath", "")
	v.SetDefault("CatalogProvider", catalog.DefaultProviderKey())
	v.SetDefault("CatalogURL", "")
	v.SetDefault("UserAgent", DefaultUserAgent)
	v.SetDefault("Proxy", "")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("InitialBackoff", "1s")
	v.SetDefault("MaxConcurrentDownloads", 4)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	g.CatalogProvider = strings.ToLower(strings.TrimSpace(g.CatalogProvider))
	if g.CatalogProvider == "" {
		g.CatalogProvider = catalog.DefaultProviderKey()
	}
	if strings.TrimSpace(g.CatalogURL) == "" {
		if provider, ok := catalog.ResolveProvider(g.CatalogProvider); ok {
			g.CatalogURL = provider.BaseURL
		}
	}
	if strings.TrimSpace(g.UserAgent) == "" {
		g.UserAgent = DefaultUserAgent
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(time.Second)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.MaxConcurrentDownloads == 0 {
		g.MaxConcurrentDownloads = 4
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
