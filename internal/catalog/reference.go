package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/font-hub/font-hub/internal/font"
)

// ReferenceKind 区分用户输入的引用形式。
type ReferenceKind string

const (
	ReferenceName    ReferenceKind = "name"
	ReferenceURL     ReferenceKind = "url"
	ReferenceSnippet ReferenceKind = "snippet"
)

// catalogWeights 是按族名构造目录 URL 时请求的全部字重与样式组合。
const catalogWeights = "100,100italic,200,200italic,300,300italic,400,400italic,500,500italic,600,600italic,700,700italic,800,800italic,900,900italic"

// Reference 是解析后的字体引用：Family 用于加锁与建目录，URL 为实际抓取的样式表地址。
type Reference struct {
	Raw      string        `json:"raw"`
	Kind     ReferenceKind `json:"kind"`
	Family   string        `json:"family"`
	URL      string        `json:"url"`
	Provider string        `json:"provider,omitempty"`
}

// ParseReference 识别族名、样式表 URL 或 <link href> 嵌入片段。不做任何网络请求。
func ParseReference(raw, baseURL string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: empty reference", font.ErrInvalidReference)
	}

	ref := Reference{Raw: raw}
	switch {
	case strings.HasPrefix(trimmed, "<"):
		href, err := linkHref(trimmed)
		if err != nil {
			return Reference{}, err
		}
		ref.Kind = ReferenceSnippet
		ref.URL = href
	case strings.HasPrefix(strings.ToLower(trimmed), "http://"), strings.HasPrefix(strings.ToLower(trimmed), "https://"):
		ref.Kind = ReferenceURL
		ref.URL = trimmed
	default:
		if strings.ContainsAny(trimmed, "/\\?&=<>") || font.FamilyKey(trimmed) == "" {
			return Reference{}, fmt.Errorf("%w: %q is not a family name", font.ErrInvalidReference, trimmed)
		}
		catalogURL, err := BuildCatalogURL(baseURL, trimmed)
		if err != nil {
			return Reference{}, err
		}
		ref.Kind = ReferenceName
		ref.Family = strings.Join(strings.Fields(trimmed), " ")
		ref.URL = catalogURL
		ref.Provider = ProviderForURL(catalogURL)
		return ref, nil
	}

	family, err := familyFromURL(ref.URL)
	if err != nil {
		return Reference{}, err
	}
	ref.Family = family
	ref.Provider = ProviderForURL(ref.URL)
	return ref, nil
}

// BuildCatalogURL 拼出 {base}?family={Name}:{全部字重}&display=swap。
func BuildCatalogURL(baseURL, family string) (string, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return "", fmt.Errorf("%w: catalog url not configured", font.ErrInvalidReference)
	}
	name := strings.Join(strings.Fields(family), " ")
	if name == "" {
		return "", fmt.Errorf("%w: empty family", font.ErrInvalidReference)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "family=" + url.QueryEscape(name) + ":" + catalogWeights + "&display=swap", nil
}

// familyFromURL 从 family 查询参数中取第一个族名，去掉 ":" 之后的字重说明。
func familyFromURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: malformed url %q", font.ErrInvalidReference, raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", font.ErrInvalidReference, parsed.Scheme)
	}
	value := familyParam(parsed.RawQuery)
	// css v1 允许用 | 一次请求多个族，这里只取第一个作为记录名。
	if idx := strings.Index(value, "|"); idx >= 0 {
		value = value[:idx]
	}
	if idx := strings.Index(value, ":"); idx >= 0 {
		value = value[:idx]
	}
	family := strings.Join(strings.Fields(value), " ")
	if family == "" {
		return "", fmt.Errorf("%w: url %q has no family parameter", font.ErrInvalidReference, raw)
	}
	if font.FamilyKey(family) == "" {
		return "", fmt.Errorf("%w: %q is not a family name", font.ErrInvalidReference, family)
	}
	return family, nil
}

// familyParam 手动切分 RawQuery：css2 的 family 值包含 ";"，url.ParseQuery 会丢弃整对参数。
func familyParam(rawQuery string) string {
	for _, pair := range strings.Split(rawQuery, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key != "family" {
			continue
		}
		if unescaped, err := url.QueryUnescape(value); err == nil {
			return unescaped
		}
		return strings.ReplaceAll(value, "+", " ")
	}
	return ""
}

// linkHref 解析嵌入片段，返回第一个指向样式表的 <link href>。
func linkHref(snippet string) (string, error) {
	node, err := html.Parse(strings.NewReader(snippet))
	if err != nil {
		return "", fmt.Errorf("%w: %v", font.ErrInvalidReference, err)
	}
	var candidates []string
	collectLinkHrefs(node, &candidates)
	for _, href := range candidates {
		if strings.Contains(href, "family=") {
			return href, nil
		}
	}
	return "", fmt.Errorf("%w: snippet has no stylesheet link", font.ErrInvalidReference)
}

func collectLinkHrefs(n *html.Node, out *[]string) {
	if n.Type == html.ElementNode && n.Data == "link" {
		var href, rel string
		for _, attr := range n.Attr {
			switch strings.ToLower(attr.Key) {
			case "href":
				href = strings.TrimSpace(attr.Val)
			case "rel":
				rel = strings.ToLower(attr.Val)
			}
		}
		// preconnect 链接只指向域名，不是样式表。
		if href != "" && !strings.Contains(rel, "preconnect") {
			*out = append(*out, href)
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectLinkHrefs(child, out)
	}
}
