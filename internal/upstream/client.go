package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/font-hub/font-hub/internal/config"
	"github.com/font-hub/font-hub/internal/font"
)

// maxBodyBytes 限制单次响应体大小，字体文件与样式表都远小于该值。
const maxBodyBytes = 64 << 20

// Client 封装对字体目录/CDN 的 GET 请求，并把失败归类为 *font.NetworkError。
// 它不做重试。
type Client struct {
	http      *http.Client
	userAgent string
}

// New 根据配置构造 Client。
func New(cfg *config.Config) *Client {
	userAgent := config.DefaultUserAgent
	if cfg != nil && cfg.Global.UserAgent != "" {
		userAgent = cfg.Global.UserAgent
	}
	return NewClient(NewUpstreamClient(cfg), userAgent)
}

// NewClient 允许测试注入自定义 http.Client。
func NewClient(httpClient *http.Client, userAgent string) *Client {
	if httpClient == nil {
		httpClient = NewUpstreamClient(nil)
	}
	return &Client{http: httpClient, userAgent: userAgent}
}

// FetchText 获取文本响应（样式表）。
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url, "text/css,*/*;q=0.1")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes 获取二进制响应（字体文件）。
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, url, "*/*")
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &font.NetworkError{Kind: font.NetworkUnreachable, URL: url, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &font.NetworkError{Kind: font.NetworkHTTPStatus, StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, classify(url, err)
	}
	if len(body) > maxBodyBytes {
		return nil, &font.NetworkError{
			Kind: font.NetworkUnreachable,
			URL:  url,
			Err:  fmt.Errorf("response exceeds %d bytes", maxBodyBytes),
		}
	}
	return body, nil
}

func classify(url string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &font.NetworkError{Kind: font.NetworkTimeout, URL: url, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &font.NetworkError{Kind: font.NetworkTimeout, URL: url, Err: err}
	}
	return &font.NetworkError{Kind: font.NetworkUnreachable, URL: url, Err: err}
}
