package localscan

import (
	"strconv"
	"strings"

	"github.com/font-hub/font-hub/internal/font"
)

// weightKeywords 覆盖常见字体厂商在文件名中使用的字重写法。
var weightKeywords = map[string]int{
	"thin":       100,
	"hairline":   100,
	"extralight": 200,
	"ultralight": 200,
	"light":      300,
	"regular":    400,
	"normal":     400,
	"book":       400,
	"roman":      400,
	"medium":     500,
	"semibold":   600,
	"demibold":   600,
	"bold":       700,
	"extrabold":  800,
	"ultrabold":  800,
	"black":      900,
	"heavy":      900,
}

// weightPrefixes 是可能被分隔符拆开的修饰前缀，例如 "Semi-Bold"。
var weightPrefixes = map[string]struct{}{
	"semi":  {},
	"demi":  {},
	"extra": {},
	"ultra": {},
}

// splitStem 按 "-"、"_" 与空白切分文件名主干，并把 "Semi Bold" 一类的前缀与后续词合并。
func splitStem(stem string) []string {
	raw := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '\t'
	})
	tokens := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if _, ok := weightPrefixes[strings.ToLower(raw[i])]; ok && i+1 < len(raw) {
			if _, known := weightKeywords[strings.ToLower(raw[i]+raw[i+1])]; known {
				tokens = append(tokens, raw[i]+raw[i+1])
				i++
				continue
			}
		}
		tokens = append(tokens, raw[i])
	}
	return tokens
}

// inference 记录从文件名尾部识别出的字重与样式。
type inference struct {
	weight     int
	style      font.Style
	confident  bool
	descTokens int
}

// inferFromTokens 从尾部向前识别描述词（Bold、Italic、700、400italic、BoldItalic），
// 遇到第一个无法识别的词即停止；descTokens 为尾部描述词数量。
func inferFromTokens(tokens []string) inference {
	result := inference{weight: 400, style: font.StyleNormal}
	weightSet := false
	for i := len(tokens) - 1; i >= 0; i-- {
		weight, italic, ok := classifyToken(tokens[i])
		if !ok {
			break
		}
		result.descTokens++
		result.confident = true
		if italic {
			result.style = font.StyleItalic
		}
		if weight > 0 && !weightSet {
			result.weight = weight
			weightSet = true
		}
	}
	return result
}

// classifyToken 识别单个描述词；weight 为 0 表示该词只携带样式信息。
func classifyToken(token string) (int, bool, bool) {
	lower := strings.ToLower(token)
	if lower == "" {
		return 0, false, false
	}

	italic := false
	for _, suffix := range []string{"italic", "oblique"} {
		if strings.HasSuffix(lower, suffix) {
			italic = true
			lower = strings.TrimSuffix(lower, suffix)
			break
		}
	}
	if lower == "" {
		return 0, italic, italic
	}
	if weight, ok := weightKeywords[lower]; ok {
		return weight, italic, true
	}
	if n, err := strconv.Atoi(lower); err == nil && n >= 100 && n <= 900 && n%100 == 0 {
		return n, italic, true
	}
	return 0, false, false
}

// commonPrefix 返回多个 token 序列的公共前缀（大小写不敏感），保留第一个序列的写法。
func commonPrefix(sequences [][]string) []string {
	if len(sequences) == 0 {
		return nil
	}
	prefix := sequences[0]
	for _, seq := range sequences[1:] {
		n := 0
		for n < len(prefix) && n < len(seq) && strings.EqualFold(prefix[n], seq[n]) {
			n++
		}
		prefix = prefix[:n]
	}
	return append([]string(nil), prefix...)
}
