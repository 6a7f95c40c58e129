package font

import (
	"sort"
	"time"
)

// FileEntry 记录一个已落盘的变体文件，LocalPath 总是相对缓存根目录（斜杠分隔），
// 因此整个缓存目录可以整体搬迁。
type FileEntry struct {
	Weight    int    `json:"weight"`
	Style     Style  `json:"style"`
	Format    Format `json:"format"`
	LocalPath string `json:"local_path"`
}

// Key 返回文件条目在族内的身份键。
func (e FileEntry) Key() VariantKey {
	return VariantKey{Weight: e.Weight, Style: e.Style, Format: e.Format}
}

// Record 是注册表中一个字体族的元数据。Weights/Styles 是 Files 的冗余投影，
// 只能通过 Normalize 重新计算，不应被单独修改。
type Record struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	SourceURL   string      `json:"source_url,omitempty"`
	Weights     []int       `json:"weights"`
	Styles      []Style     `json:"styles"`
	Files       []FileEntry `json:"files"`
	CachedAt    time.Time   `json:"cached_at"`
}

// Normalize 对 Files 去重排序（同 key 保留最后一个），并重新计算 Weights/Styles。
func (r *Record) Normalize() {
	byKey := make(map[VariantKey]FileEntry, len(r.Files))
	for _, entry := range r.Files {
		byKey[entry.Key()] = entry
	}
	files := make([]FileEntry, 0, len(byKey))
	for _, entry := range byKey {
		files = append(files, entry)
	}
	sort.Slice(files, func(i, j int) bool {
		return lessKey(files[i].Key(), files[j].Key())
	})
	r.Files = files

	weights := make([]int, 0, len(files))
	styles := make([]Style, 0, 2)
	seenWeight := map[int]struct{}{}
	seenStyle := map[Style]struct{}{}
	for _, entry := range files {
		if _, ok := seenWeight[entry.Weight]; !ok {
			seenWeight[entry.Weight] = struct{}{}
			weights = append(weights, entry.Weight)
		}
		if _, ok := seenStyle[entry.Style]; !ok {
			seenStyle[entry.Style] = struct{}{}
			styles = append(styles, entry.Style)
		}
	}
	sort.Ints(weights)
	sort.Slice(styles, func(i, j int) bool { return styles[i] < styles[j] })
	r.Weights = weights
	r.Styles = styles
}

// Clone 返回深拷贝，注册表对外只暴露拷贝，调用方修改不会影响内部状态。
func (r Record) Clone() Record {
	out := r
	out.Weights = append([]int(nil), r.Weights...)
	out.Styles = append([]Style(nil), r.Styles...)
	out.Files = append([]FileEntry(nil), r.Files...)
	return out
}

// FilesFor 返回匹配 weight/style 的文件条目，按格式偏好排序。
func (r Record) FilesFor(weight int, style Style) []FileEntry {
	var out []FileEntry
	for _, entry := range r.Files {
		if entry.Weight == weight && entry.Style == style {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Format.Rank() < out[j].Format.Rank()
	})
	return out
}

// MergeFiles 合并重新缓存的结果：existing 中不在 incoming 里的条目保留，
// 相同 (weight, style, format) 的条目以 incoming 为准。
func MergeFiles(existing, incoming []FileEntry) []FileEntry {
	merged := make([]FileEntry, 0, len(existing)+len(incoming))
	replaced := make(map[VariantKey]struct{}, len(incoming))
	for _, entry := range incoming {
		replaced[entry.Key()] = struct{}{}
	}
	for _, entry := range existing {
		if _, ok := replaced[entry.Key()]; ok {
			continue
		}
		merged = append(merged, entry)
	}
	return append(merged, incoming...)
}

// MergeRecord 把一次缓存结果合并进已有记录（可能为空），返回规范化后的新记录。
func MergeRecord(existing *Record, incoming Record) Record {
	if existing == nil {
		out := incoming.Clone()
		out.Normalize()
		return out
	}
	out := existing.Clone()
	out.Files = MergeFiles(out.Files, incoming.Files)
	if incoming.DisplayName != "" {
		out.DisplayName = incoming.DisplayName
	}
	if incoming.SourceURL != "" {
		out.SourceURL = incoming.SourceURL
	}
	if !incoming.CachedAt.IsZero() {
		out.CachedAt = incoming.CachedAt
	}
	out.Normalize()
	return out
}

func lessKey(a, b VariantKey) bool {
	if a.Weight != b.Weight {
		return a.Weight < b.Weight
	}
	if a.Style != b.Style {
		return a.Style < b.Style
	}
	return a.Format.Rank() < b.Format.Rank()
}
