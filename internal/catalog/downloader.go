package catalog

import (
	"context"
	"errors"

	"github.com/font-hub/font-hub/internal/font"
)

// ErrEmptyBody 表示上游返回了空的字体文件。
var ErrEmptyBody = errors.New("empty font body")

// Downloader 拉取单个变体文件。
type Downloader struct {
	transport Transport
}

// NewDownloader 创建下载器。
func NewDownloader(transport Transport) *Downloader {
	return &Downloader{transport: transport}
}

// Download 返回变体文件的完整内容，错误沿用 font.NetworkError 分类。
func (d *Downloader) Download(ctx context.Context, sourceURL string) ([]byte, error) {
	body, err := d.transport.FetchBytes(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &font.NetworkError{Kind: font.NetworkHTTPStatus, StatusCode: 204, URL: sourceURL, Err: ErrEmptyBody}
	}
	return body, nil
}
