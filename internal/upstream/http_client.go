package upstream

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/font-hub/font-hub/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewUpstreamClient 返回共享 http.Client，用于目录样式表与字体文件下载。
// 配置了 Proxy 时覆盖环境变量中的代理设置。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil && cfg.Global.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.Global.UpstreamTimeout.DurationValue()
	}

	transport := defaultTransport.Clone()
	if cfg != nil && cfg.Global.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Global.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
