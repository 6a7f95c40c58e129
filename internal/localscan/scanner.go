// Package localscan 把本地字体目录转换为可缓存的变体列表。
//
// 扫描不递归，只识别 .woff2/.woff/.ttf/.otf。字重与样式优先从文件名推断；
// 文件名无法给出结论的 TrueType/OpenType 文件会读取其 OS/2 与 head 表，
// 仍无结论时按 400/normal 处理并给出 ScanWarning。
package localscan

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"seehuhn.de/go/sfnt"

	"github.com/font-hub/font-hub/internal/font"
	"github.com/font-hub/font-hub/internal/storage"
)

// Item 是扫描得到的一个可拷贝变体。
type Item struct {
	Descriptor font.Descriptor `json:"descriptor"`
	SourcePath string          `json:"source_path"`
}

// ScanWarning 描述一个被降级处理或跳过的文件。
type ScanWarning struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (w ScanWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Reason)
}

// Result 汇总一次扫描。Items 按 weight、style、格式偏好排序。
type Result struct {
	Family      string        `json:"family"`
	DisplayName string        `json:"display_name"`
	Items       []Item        `json:"items"`
	Warnings    []ScanWarning `json:"warnings,omitempty"`
}

// Scanner 通过 storage.Store 读取目录与文件。
type Scanner struct {
	store storage.Store
}

// NewScanner 创建 Scanner。
func NewScanner(store storage.Store) *Scanner {
	return &Scanner{store: store}
}

type candidate struct {
	path    string
	format  font.Format
	tokens  []string
	guess   inference
	meta    *sfnt.Font
	metaErr error
}

// Scan 扫描 folder。explicitFamily 非空时直接作为族名，否则从文件名公共前缀推断，
// 再依次回退到字体内嵌族名与目录名。
func (s *Scanner) Scan(ctx context.Context, folder, explicitFamily string) (*Result, error) {
	entries, err := s.store.ListDir(ctx, folder)
	if err != nil {
		return nil, font.NewFilesystemError("scan", folder, err)
	}

	var candidates []*candidate
	for _, entry := range entries {
		if entry.IsDir || strings.HasPrefix(entry.Name, ".") {
			continue
		}
		format, ok := font.FormatFromExtension(entry.Name)
		if !ok {
			continue
		}
		stem := strings.TrimSuffix(entry.Name, filepath.Ext(entry.Name))
		tokens := splitStem(stem)
		candidates = append(candidates, &candidate{
			path:   entry.Path,
			format: format,
			tokens: tokens,
			guess:  inferFromTokens(tokens),
		})
	}

	result := &Result{}
	if len(candidates) == 0 {
		result.Family, result.DisplayName = s.familyFromFolder(folder, explicitFamily)
		return result, nil
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !c.guess.confident && (c.format == font.FormatTTF || c.format == font.FormatOTF) {
			c.meta, c.metaErr = s.readMetadata(ctx, c.path)
		}
	}

	result.Family, result.DisplayName = s.inferFamily(folder, explicitFamily, candidates)

	seen := make(map[font.VariantKey]string, len(candidates))
	for _, c := range candidates {
		weight, style := c.guess.weight, c.guess.style
		if !c.guess.confident {
			switch {
			case c.meta != nil:
				weight, style = metadataVariant(c.meta)
			case c.metaErr != nil:
				result.Warnings = append(result.Warnings, ScanWarning{
					Path:   c.path,
					Reason: fmt.Sprintf("weight/style not recognised in file name and font tables unreadable (%v); using 400 normal", c.metaErr),
				})
			default:
				result.Warnings = append(result.Warnings, ScanWarning{
					Path:   c.path,
					Reason: "weight/style not recognised in file name; using 400 normal",
				})
			}
		}

		d := font.Descriptor{Family: result.Family, Weight: weight, Style: style, Format: c.format}
		if first, dup := seen[d.Key()]; dup {
			result.Warnings = append(result.Warnings, ScanWarning{
				Path:   c.path,
				Reason: fmt.Sprintf("duplicate of %s for %d %s %s; skipped", filepath.Base(first), weight, style, c.format),
			})
			continue
		}
		seen[d.Key()] = c.path
		result.Items = append(result.Items, Item{Descriptor: d, SourcePath: c.path})
	}

	sort.SliceStable(result.Items, func(i, j int) bool {
		a, b := result.Items[i].Descriptor, result.Items[j].Descriptor
		if a.Weight != b.Weight {
			return a.Weight < b.Weight
		}
		if a.Style != b.Style {
			return a.Style < b.Style
		}
		return a.Format.Rank() < b.Format.Rank()
	})
	return result, nil
}

func (s *Scanner) inferFamily(folder, explicit string, candidates []*candidate) (string, string) {
	if name := strings.Join(strings.Fields(explicit), " "); name != "" {
		return name, font.DisplayName(name, "")
	}

	sequences := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		sequences = append(sequences, c.tokens)
	}
	prefix := commonPrefix(sequences)
	prefix = prefix[:len(prefix)-inferFromTokens(prefix).descTokens]
	if len(prefix) > 0 {
		if family := font.Sanitize(strings.Join(prefix, "-")); family != "" {
			return family, font.DisplayName("", family)
		}
	}

	for _, c := range candidates {
		if c.meta != nil && strings.TrimSpace(c.meta.FamilyName) != "" {
			return font.Sanitize(c.meta.FamilyName), font.DisplayName(c.meta.FamilyName, "")
		}
	}
	return s.familyFromFolder(folder, "")
}

func (s *Scanner) familyFromFolder(folder, explicit string) (string, string) {
	if name := strings.Join(strings.Fields(explicit), " "); name != "" {
		return name, font.DisplayName(name, "")
	}
	family := font.Sanitize(filepath.Base(filepath.Clean(folder)))
	return family, font.DisplayName("", family)
}

func (s *Scanner) readMetadata(ctx context.Context, path string) (*sfnt.Font, error) {
	data, err := s.store.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return sfnt.Read(bytes.NewReader(data))
}

// metadataVariant 把 OS/2 usWeightClass 与斜体标记映射为描述符字段。
func metadataVariant(f *sfnt.Font) (int, font.Style) {
	weight := int(f.Weight)
	if !font.ValidWeight(weight) {
		weight = 400
		if f.IsBold {
			weight = 700
		}
	}
	style := font.StyleNormal
	if f.IsItalic {
		style = font.StyleItalic
	}
	return weight, style
}
