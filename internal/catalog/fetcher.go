package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/font-hub/font-hub/internal/font"
)

// Transport 是抓取样式表与字体文件所需的最小 HTTP 能力，由 upstream.Client 实现。
// 失败时返回 *font.NetworkError。
type Transport interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Fetcher 抓取目录样式表。
type Fetcher struct {
	transport Transport
	baseURL   string
}

// NewFetcher 使用 baseURL 作为族名引用的目录地址。
func NewFetcher(transport Transport, baseURL string) *Fetcher {
	return &Fetcher{transport: transport, baseURL: baseURL}
}

// BaseURL 返回目录地址。
func (f *Fetcher) BaseURL() string {
	return f.baseURL
}

// Resolve 把原始输入解析为 Reference，不访问网络。
func (f *Fetcher) Resolve(raw string) (Reference, error) {
	return ParseReference(raw, f.baseURL)
}

// Fetch 下载样式表文本。目录对未知族名返回 400/404，此时转换为 *font.NotFoundError。
func (f *Fetcher) Fetch(ctx context.Context, ref Reference) (string, error) {
	if ref.URL == "" {
		return "", fmt.Errorf("%w: reference has no url", font.ErrInvalidReference)
	}
	text, err := f.transport.FetchText(ctx, ref.URL)
	if err != nil {
		var netErr *font.NetworkError
		if errors.As(err, &netErr) && netErr.Kind == font.NetworkHTTPStatus &&
			(netErr.StatusCode == http.StatusBadRequest || netErr.StatusCode == http.StatusNotFound) {
			return "", &font.NotFoundError{Family: ref.Family, URL: ref.URL}
		}
		return "", err
	}
	return text, nil
}

// ResolveSource 将样式表中的相对 URL 解析为绝对地址。
func ResolveSource(stylesheetURL, source string) (string, error) {
	target, err := url.Parse(source)
	if err != nil {
		return "", err
	}
	if target.IsAbs() {
		return target.String(), nil
	}
	base, err := url.Parse(stylesheetURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(target).String(), nil
}
