package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/font-hub/font-hub/internal/font"
)

// Source 是 src 描述符中的一个远程候选。
type Source struct {
	URL    string      `json:"url"`
	Format font.Format `json:"format"`
}

// FontFaceBlock 是一个 @font-face 规则的类型化结果，Sources 保持声明顺序。
type FontFaceBlock struct {
	Family       string
	Weight       int
	Style        font.Style
	Sources      []Source
	UnicodeRange string
	// Offset 是 "@font-face" 在样式表中的字节偏移。
	Offset int
}

// Variant 是解析后待下载的变体：描述符加上选中的来源 URL。
type Variant struct {
	Descriptor font.Descriptor `json:"descriptor"`
	SourceURL  string          `json:"source_url"`
}

// Parse 解析样式表并为每个 (family, weight, style) 选出唯一的来源。
// 目录会按 unicode 子集拆出多个同名 @font-face，优先保留覆盖基本拉丁字母的那一个。
// 没有任何 @font-face 时返回空切片而不是错误。
func Parse(text string) ([]Variant, error) {
	blocks, err := ParseBlocks(text)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		family string
		weight int
		style  font.Style
	}
	order := make([]groupKey, 0, len(blocks))
	chosen := make(map[groupKey]FontFaceBlock, len(blocks))
	for _, block := range blocks {
		key := groupKey{family: font.FamilyKey(block.Family), weight: block.Weight, style: block.Style}
		current, seen := chosen[key]
		if !seen {
			order = append(order, key)
			chosen[key] = block
			continue
		}
		if !coversRune(current.UnicodeRange, 'A') && coversRune(block.UnicodeRange, 'A') {
			chosen[key] = block
		}
	}

	variants := make([]Variant, 0, len(order))
	for _, key := range order {
		block := chosen[key]
		best := bestSource(block.Sources)
		variants = append(variants, Variant{
			Descriptor: font.Descriptor{
				Family: block.Family,
				Weight: block.Weight,
				Style:  block.Style,
				Format: best.Format,
			},
			SourceURL: best.URL,
		})
	}
	return variants, nil
}

// bestSource 按格式偏好挑选来源，同等格式保留先声明的。调用方保证 sources 非空。
func bestSource(sources []Source) Source {
	best := sources[0]
	for _, candidate := range sources[1:] {
		if candidate.Format.Rank() < best.Format.Rank() {
			best = candidate
		}
	}
	return best
}

// ParseBlocks 扫描样式表，返回所有可用的 @font-face 块。
// 缺少 font-family 或没有可下载来源（例如只有 local()）的块会被忽略；
// 语法错误（未闭合的注释、字符串、url() 或块，缺少冒号）返回 *font.ParseError。
func ParseBlocks(text string) ([]FontFaceBlock, error) {
	s := &scanner{src: text}
	var blocks []FontFaceBlock
	for {
		if err := s.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		if s.eof() {
			return blocks, nil
		}

		switch s.peek() {
		case '@':
			start := s.pos
			s.pos++
			name := strings.ToLower(s.readIdent())
			if name == "font-face" {
				decls, err := s.readDeclarationBlock(start)
				if err != nil {
					return nil, err
				}
				block, ok, err := buildBlock(decls, start)
				if err != nil {
					return nil, err
				}
				if ok {
					blocks = append(blocks, block)
				}
				continue
			}
			if err := s.skipAtRule(start); err != nil {
				return nil, err
			}
		case '}':
			return nil, &font.ParseError{Reason: "unexpected '}'", Offset: s.pos}
		default:
			if err := s.skipQualifiedRule(); err != nil {
				return nil, err
			}
		}
	}
}

type declaration struct {
	name   string
	value  string
	offset int
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool  { return s.pos >= len(s.src) }
func (s *scanner) peek() byte { return s.src[s.pos] }

func (s *scanner) startsWith(prefix string) bool {
	return strings.HasPrefix(s.src[s.pos:], prefix)
}

func (s *scanner) skipSpaceAndComments() error {
	for !s.eof() {
		switch {
		case isSpace(s.peek()):
			s.pos++
		case s.startsWith("/*"):
			if err := s.skipComment(); err != nil {
				return err
			}
		case s.startsWith("<!--"):
			s.pos += 4
		case s.startsWith("-->"):
			s.pos += 3
		default:
			return nil
		}
	}
	return nil
}

func (s *scanner) skipComment() error {
	start := s.pos
	end := strings.Index(s.src[s.pos+2:], "*/")
	if end < 0 {
		return &font.ParseError{Reason: "unterminated comment", Offset: start}
	}
	s.pos += 2 + end + 2
	return nil
}

func (s *scanner) readIdent() string {
	start := s.pos
	for !s.eof() {
		c := s.peek()
		if c == '-' || c == '_' || c >= 0x80 || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			s.pos++
			continue
		}
		break
	}
	return s.src[start:s.pos]
}

// skipString 跳过以当前引号开头的字符串，支持反斜杠转义。
func (s *scanner) skipString() error {
	start := s.pos
	quote := s.peek()
	s.pos++
	for !s.eof() {
		c := s.peek()
		switch {
		case c == '\\':
			s.pos += 2
		case c == quote:
			s.pos++
			return nil
		case c == '\n':
			return &font.ParseError{Reason: "unterminated string", Offset: start}
		default:
			s.pos++
		}
	}
	return &font.ParseError{Reason: "unterminated string", Offset: start}
}

// skipBlock 从 '{' 开始跳过一个平衡的块。
func (s *scanner) skipBlock() error {
	start := s.pos
	depth := 0
	for !s.eof() {
		switch {
		case s.startsWith("/*"):
			if err := s.skipComment(); err != nil {
				return err
			}
			continue
		case s.peek() == '"' || s.peek() == '\'':
			if err := s.skipString(); err != nil {
				return err
			}
			continue
		case s.peek() == '{':
			depth++
		case s.peek() == '}':
			depth--
			if depth == 0 {
				s.pos++
				return nil
			}
		}
		s.pos++
	}
	return &font.ParseError{Reason: "unterminated block", Offset: start}
}

// skipAtRule 跳过除 @font-face 以外的 at 规则（@charset、@import、@media ...）。
func (s *scanner) skipAtRule(start int) error {
	for !s.eof() {
		switch {
		case s.startsWith("/*"):
			if err := s.skipComment(); err != nil {
				return err
			}
			continue
		case s.peek() == '"' || s.peek() == '\'':
			if err := s.skipString(); err != nil {
				return err
			}
			continue
		case s.peek() == ';':
			s.pos++
			return nil
		case s.peek() == '{':
			return s.skipBlock()
		case s.peek() == '}':
			return &font.ParseError{Reason: "unexpected '}' in at-rule prelude", Offset: s.pos}
		}
		s.pos++
	}
	return &font.ParseError{Reason: "unterminated at-rule", Offset: start}
}

func (s *scanner) skipQualifiedRule() error {
	start := s.pos
	for !s.eof() {
		switch {
		case s.startsWith("/*"):
			if err := s.skipComment(); err != nil {
				return err
			}
			continue
		case s.peek() == '"' || s.peek() == '\'':
			if err := s.skipString(); err != nil {
				return err
			}
			continue
		case s.peek() == '{':
			return s.skipBlock()
		case s.peek() == ';':
			return &font.ParseError{Reason: "unexpected ';' outside of a block", Offset: s.pos}
		}
		s.pos++
	}
	return &font.ParseError{Reason: "unterminated rule", Offset: start}
}

// readDeclarationBlock 读取 @font-face 后的 { name: value; ... }。
func (s *scanner) readDeclarationBlock(ruleStart int) ([]declaration, error) {
	if err := s.skipSpaceAndComments(); err != nil {
		return nil, err
	}
	if s.eof() || s.peek() != '{' {
		return nil, &font.ParseError{Reason: "expected '{' after @font-face", Offset: s.pos}
	}
	s.pos++

	var decls []declaration
	for {
		if err := s.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		if s.eof() {
			return nil, &font.ParseError{Reason: "unterminated @font-face block", Offset: ruleStart}
		}
		switch s.peek() {
		case '}':
			s.pos++
			return decls, nil
		case ';':
			s.pos++
			continue
		}

		nameStart := s.pos
		name := strings.ToLower(s.readIdent())
		if err := s.skipSpaceAndComments(); err != nil {
			return nil, err
		}
		if name == "" || s.eof() || s.peek() != ':' {
			return nil, &font.ParseError{Reason: "expected ':' after property name", Offset: nameStart}
		}
		s.pos++

		value, err := s.readValue(ruleStart)
		if err != nil {
			return nil, err
		}
		decls = append(decls, declaration{name: name, value: value, offset: nameStart})
	}
}

// readValue 读取到顶层的 ';' 或 '}' 为止，去掉注释，保留字符串与括号内容原样。
func (s *scanner) readValue(ruleStart int) (string, error) {
	var b strings.Builder
	depth := 0
	parenStart := -1
	for !s.eof() {
		c := s.peek()
		switch {
		case s.startsWith("/*"):
			if err := s.skipComment(); err != nil {
				return "", err
			}
			b.WriteByte(' ')
			continue
		case c == '"' || c == '\'':
			start := s.pos
			if err := s.skipString(); err != nil {
				return "", err
			}
			b.WriteString(s.src[start:s.pos])
			continue
		case c == '(':
			if depth == 0 {
				parenStart = s.pos
			}
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && c == ';':
			s.pos++
			return strings.TrimSpace(b.String()), nil
		case depth == 0 && c == '}':
			return strings.TrimSpace(b.String()), nil
		}
		b.WriteByte(c)
		s.pos++
	}
	if depth > 0 {
		return "", &font.ParseError{Reason: "unterminated function", Offset: parenStart}
	}
	return "", &font.ParseError{Reason: "unterminated @font-face block", Offset: ruleStart}
}

func buildBlock(decls []declaration, offset int) (FontFaceBlock, bool, error) {
	block := FontFaceBlock{Weight: 400, Style: font.StyleNormal, Offset: offset}
	for _, decl := range decls {
		switch decl.name {
		case "font-family":
			block.Family = strings.Join(strings.Fields(unquote(decl.value)), " ")
		case "font-weight":
			weight, err := parseWeight(decl.value)
			if err != nil {
				return FontFaceBlock{}, false, &font.ParseError{Reason: err.Error(), Offset: decl.offset}
			}
			block.Weight = weight
		case "font-style":
			fields := strings.Fields(decl.value)
			raw := ""
			if len(fields) > 0 {
				raw = fields[0]
			}
			style, ok := font.ParseStyle(raw)
			if !ok {
				return FontFaceBlock{}, false, &font.ParseError{Reason: fmt.Sprintf("invalid font-style %q", decl.value), Offset: decl.offset}
			}
			block.Style = style
		case "src":
			block.Sources = parseSources(decl.value)
		case "unicode-range":
			block.UnicodeRange = decl.value
		}
	}
	if block.Family == "" || len(block.Sources) == 0 {
		return FontFaceBlock{}, false, nil
	}
	return block, true, nil
}

// parseWeight 识别关键字与数值；可变字体的范围写法取第一个值。
func parseWeight(value string) (int, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 400, nil
	}
	switch strings.ToLower(fields[0]) {
	case "normal":
		return 400, nil
	case "bold", "bolder":
		return 700, nil
	case "lighter":
		return 300, nil
	}
	number, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid font-weight %q", value)
	}
	weight := int(math.Round(number))
	if !font.ValidWeight(weight) {
		return 0, fmt.Errorf("font-weight %d out of range", weight)
	}
	return weight, nil
}

// parseSources 解析 src 列表，跳过 local() 与 data: URL，以及无法识别格式的条目。
func parseSources(value string) []Source {
	var sources []Source
	for _, item := range splitTopLevel(value, ',') {
		item = strings.TrimSpace(item)
		lower := strings.ToLower(item)
		if !strings.HasPrefix(lower, "url(") {
			continue
		}
		inner, rest, ok := functionArg(item[len("url("):])
		if !ok {
			continue
		}
		target := unquote(inner)
		if target == "" || strings.HasPrefix(strings.ToLower(target), "data:") {
			continue
		}

		format, known := font.Format(""), false
		if idx := strings.Index(strings.ToLower(rest), "format("); idx >= 0 {
			if hint, _, ok := functionArg(rest[idx+len("format("):]); ok {
				hint = strings.TrimSuffix(strings.ToLower(unquote(hint)), "-variations")
				format, known = font.ParseFormat(hint)
			}
		}
		if !known {
			format, known = font.FormatFromExtension(target)
		}
		if !known {
			continue
		}
		sources = append(sources, Source{URL: target, Format: format})
	}
	return sources
}

// functionArg 返回到匹配的 ')' 为止的参数以及之后的剩余部分。
func functionArg(s string) (string, string, bool) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == ')':
			return strings.TrimSpace(s[:i]), s[i+1:], true
		}
	}
	return "", "", false
}

func splitTopLevel(value string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, value[start:i])
			start = i + 1
		}
	}
	return append(parts, value[start:])
}

func unquote(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// coversRune 判断 unicode-range 是否包含 r；未声明时按 CSS 默认覆盖全部码位。
func coversRune(rangeValue string, r rune) bool {
	if strings.TrimSpace(rangeValue) == "" {
		return true
	}
	for _, part := range strings.Split(rangeValue, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if !strings.HasPrefix(part, "U+") {
			continue
		}
		body := part[2:]
		var lo, hi int64
		var err error
		switch {
		case strings.Contains(body, "?"):
			lo, err = strconv.ParseInt(strings.ReplaceAll(body, "?", "0"), 16, 32)
			if err != nil {
				continue
			}
			hi, err = strconv.ParseInt(strings.ReplaceAll(body, "?", "F"), 16, 32)
		case strings.Contains(body, "-"):
			bounds := strings.SplitN(body, "-", 2)
			lo, err = strconv.ParseInt(bounds[0], 16, 32)
			if err != nil {
				continue
			}
			hi, err = strconv.ParseInt(bounds[1], 16, 32)
		default:
			lo, err = strconv.ParseInt(body, 16, 32)
			hi = lo
		}
		if err != nil {
			continue
		}
		if int64(r) >= lo && int64(r) <= hi {
			return true
		}
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
