package font

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sanitize 把字体族名转换为目录/文件名安全的形式：先做 NFC 归一，再把连续空白替换成单个连字符。
// 同一族名无论以何种 Unicode 组合形式传入，都落到同一个目录。
// 结果为 "." 或 ".." 时返回空串，调用方按无效族名处理。
func Sanitize(family string) string {
	normalized := norm.NFC.String(strings.TrimSpace(family))
	fields := strings.Fields(normalized)
	cleaned := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Map(func(r rune) rune {
			switch r {
			case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
				return -1
			}
			return r
		}, field)
		if field != "" {
			cleaned = append(cleaned, field)
		}
	}
	out := strings.Join(cleaned, "-")
	if out == "." || out == ".." {
		return ""
	}
	return out
}

// DisplayName 返回用于展示的族名；未提供时从 Sanitize 后的名字还原空格。
func DisplayName(name, fallback string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return norm.NFC.String(trimmed)
	}
	return strings.ReplaceAll(fallback, "-", " ")
}

// FamilyKey 返回用于比较/加锁的族名键，大小写不敏感。
func FamilyKey(family string) string {
	return strings.ToLower(Sanitize(family))
}
