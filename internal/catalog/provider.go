package catalog

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

const defaultProviderKey = "google"

// Provider 描述一个兼容 Google Fonts CSS API 的字体目录。
type Provider struct {
	Key         string   `json:"key"`
	Description string   `json:"description"`
	BaseURL     string   `json:"base_url"`
	Hosts       []string `json:"hosts"`
}

var globalProviders = newProviderRegistry()

func init() {
	MustRegisterProvider(Provider{
		Key:         "google",
		Description: "Google Fonts CSS API",
		BaseURL:     "https://fonts.googleapis.com/css",
		Hosts:       []string{"fonts.googleapis.com", "fonts.gstatic.com"},
	})
	MustRegisterProvider(Provider{
		Key:         "bunny",
		Description: "Bunny Fonts (Google Fonts compatible)",
		BaseURL:     "https://fonts.bunny.net/css",
		Hosts:       []string{"fonts.bunny.net"},
	})
}

type providerRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func newProviderRegistry() *providerRegistry {
	return &providerRegistry{providers: make(map[string]Provider)}
}

// DefaultProviderKey 返回未配置 CatalogProvider 时使用的目录。
func DefaultProviderKey() string {
	return defaultProviderKey
}

// RegisterProvider 将目录加入全局注册表，重复键会返回错误。
func RegisterProvider(p Provider) error {
	return globalProviders.register(p)
}

// MustRegisterProvider 在注册失败时 panic，适合 init() 中调用。
func MustRegisterProvider(p Provider) {
	if err := RegisterProvider(p); err != nil {
		panic(err)
	}
}

// ResolveProvider 返回指定键的目录，大小写不敏感。
func ResolveProvider(key string) (Provider, bool) {
	return globalProviders.resolve(key)
}

// Providers 返回按键排序的目录列表。
func Providers() []Provider {
	return globalProviders.list()
}

// ProviderForURL 根据 URL 的 Host 找到对应目录，未知 Host 返回空键。
func ProviderForURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	for _, p := range Providers() {
		for _, candidate := range p.Hosts {
			if candidate == host {
				return p.Key
			}
		}
	}
	return ""
}

func (r *providerRegistry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *providerRegistry) register(p Provider) error {
	key := r.normalizeKey(p.Key)
	if key == "" {
		return fmt.Errorf("provider key is required")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("provider %s: base url is required", key)
	}
	p.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[key]; exists {
		return fmt.Errorf("provider %s already registered", key)
	}
	r.providers[key] = p
	return nil
}

func (r *providerRegistry) resolve(key string) (Provider, bool) {
	if key == "" {
		return Provider{}, false
	}
	normalized := r.normalizeKey(key)

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[normalized]
	return p, ok
}

func (r *providerRegistry) list() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.providers))
	for key := range r.providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Provider, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.providers[key])
	}
	return result
}
