// Package font 定义字体缓存的核心数据模型：变体描述符、注册表记录与错误分类。
// 其它包（catalog/localscan/layout/registry/manager）只通过这里的类型交换数据，
// 避免在各层重复解析 weight/style/format。
package font

import (
	"fmt"
	"path"
	"strings"
)

// Style 表示字体样式，仅区分 normal 与 italic（oblique 归一为 italic）。
type Style string

const (
	StyleNormal Style = "normal"
	StyleItalic Style = "italic"
)

// ParseStyle 将 CSS/文件名中的样式关键字归一化。
func ParseStyle(raw string) (Style, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case value == "" || value == "normal" || value == "regular":
		return StyleNormal, true
	case value == "italic" || strings.HasPrefix(value, "oblique"):
		return StyleItalic, true
	default:
		return "", false
	}
}

// Format 表示字体文件格式。
type Format string

const (
	FormatWOFF2 Format = "woff2"
	FormatWOFF  Format = "woff"
	FormatTTF   Format = "ttf"
	FormatOTF   Format = "otf"
)

// formatPreference 即多源回退时的选择顺序：优先压缩率高、兼容性广的格式。
var formatPreference = []Format{FormatWOFF2, FormatWOFF, FormatTTF, FormatOTF}

// Formats 按偏好顺序返回全部已知格式。
func Formats() []Format {
	return append([]Format(nil), formatPreference...)
}

// Rank 返回格式在偏好顺序中的位置，未知格式排在最后。
func (f Format) Rank() int {
	for i, candidate := range formatPreference {
		if candidate == f {
			return i
		}
	}
	return len(formatPreference)
}

// Valid 判断是否为已知格式。
func (f Format) Valid() bool {
	return f.Rank() < len(formatPreference)
}

// Extension 返回带点号的文件扩展名。
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType 返回对外提供文件时使用的 MIME 类型。
func (f Format) ContentType() string {
	switch f {
	case FormatWOFF2:
		return "font/woff2"
	case FormatWOFF:
		return "font/woff"
	case FormatTTF:
		return "font/ttf"
	case FormatOTF:
		return "font/otf"
	}
	return "application/octet-stream"
}

// ParseFormat 识别 CSS format() 提示或裸格式名，例如 "truetype"、"opentype"。
func ParseFormat(raw string) (Format, bool) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"'`)) {
	case "woff2":
		return FormatWOFF2, true
	case "woff":
		return FormatWOFF, true
	case "truetype", "ttf":
		return FormatTTF, true
	case "opentype", "otf":
		return FormatOTF, true
	}
	return "", false
}

// FormatFromExtension 根据文件名或 URL 路径的扩展名推断格式，忽略 query/fragment。
func FormatFromExtension(name string) (Format, bool) {
	if idx := strings.IndexAny(name, "?#"); idx >= 0 {
		name = name[:idx]
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext == "" {
		return "", false
	}
	return ParseFormat(ext)
}

// Descriptor 唯一标识一个字体变体文件，创建后按值传递、不再修改。
type Descriptor struct {
	Family string `json:"family"`
	Weight int    `json:"weight"`
	Style  Style  `json:"style"`
	Format Format `json:"format"`
}

// VariantKey 是同一字体族内变体的身份键。
type VariantKey struct {
	Weight int
	Style  Style
	Format Format
}

// Key 返回描述符在族内的身份键。
func (d Descriptor) Key() VariantKey {
	return VariantKey{Weight: d.Weight, Style: d.Style, Format: d.Format}
}

// FileName 返回 {family}-{weight}-{style}.{format} 形式的文件名，family 会先做 Sanitize。
func (d Descriptor) FileName() string {
	return fmt.Sprintf("%s-%d-%s%s", Sanitize(d.Family), d.Weight, d.Style, d.Format.Extension())
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %d %s (%s)", d.Family, d.Weight, d.Style, d.Format)
}

// ValidWeight 判断 weight 是否落在 CSS 允许的 1-1000 区间。
func ValidWeight(weight int) bool {
	return weight >= 1 && weight <= 1000
}
