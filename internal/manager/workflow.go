package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/font-hub/font-hub/internal/catalog"
	"github.com/font-hub/font-hub/internal/font"
	"github.com/font-hub/font-hub/internal/localscan"
	"github.com/font-hub/font-hub/internal/logging"
	"github.com/font-hub/font-hub/internal/storage"
)

// VariantFailure 记录单个变体的失败原因。
type VariantFailure struct {
	Descriptor font.Descriptor `json:"descriptor"`
	Source     string          `json:"source"`
	Err        error           `json:"-"`
	Message    string          `json:"error"`
}

// Outcome 是一次缓存流程的结果。失败时 Stage 为失败所在阶段，Record 为空。
type Outcome struct {
	Family      string                  `json:"family"`
	DisplayName string                  `json:"display_name"`
	Source      Source                  `json:"source"`
	Stage       Stage                   `json:"stage"`
	Written     []font.FileEntry        `json:"written"`
	Failed      []VariantFailure        `json:"failed,omitempty"`
	Warnings    []localscan.ScanWarning `json:"warnings,omitempty"`
	Record      *font.Record            `json:"record,omitempty"`
}

// Partial 报告流程成功但有部分变体失败。
func (o *Outcome) Partial() bool {
	return o != nil && o.Stage == StageDone && len(o.Failed) > 0
}

// job 是一个待落盘的变体；fetch 负责取回内容（下载或打开本地文件）。
type job struct {
	descriptor font.Descriptor
	source     string
	fetch      func(ctx context.Context) (*storage.ReadResult, error)
}

type jobResult struct {
	entry   *font.FileEntry
	written int64
	err     error
}

// run 记录流程级的日志与指标。
type run struct {
	m       *Manager
	outcome *Outcome
	started time.Time
	done    func()
}

func (m *Manager) startRun(source Source) *run {
	return &run{
		m:       m,
		outcome: &Outcome{Source: source, Stage: StagePending},
		started: time.Now(),
		done:    m.metrics.WorkflowStarted(),
	}
}

func (r *run) fields() logrus.Fields {
	return logging.FontFields(r.outcome.Family, string(r.outcome.Source), string(r.outcome.Stage))
}

func (r *run) fail(stage Stage, err error) (*Outcome, error) {
	r.outcome.Stage = stage
	wfErr := &WorkflowError{Family: r.outcome.Family, Stage: stage, Err: err}
	elapsed := time.Since(r.started)
	r.done()
	r.m.metrics.WorkflowFinished(string(r.outcome.Source), "failed", elapsed)
	r.m.logger.WithFields(r.fields()).WithFields(logrus.Fields{
		"written":    len(r.outcome.Written),
		"failed":     len(r.outcome.Failed),
		"elapsed_ms": elapsed.Milliseconds(),
		"error":      err.Error(),
	}).Error("font_cache_failed")
	return r.outcome, wfErr
}

func (r *run) finish(record font.Record) (*Outcome, error) {
	r.outcome.Stage = StageDone
	r.outcome.Record = &record
	elapsed := time.Since(r.started)
	result := "done"
	if r.outcome.Partial() {
		result = "partial"
	}
	r.done()
	r.m.metrics.WorkflowFinished(string(r.outcome.Source), result, elapsed)
	r.m.logger.WithFields(r.fields()).WithFields(logrus.Fields{
		"written":    len(r.outcome.Written),
		"failed":     len(r.outcome.Failed),
		"warnings":   len(r.outcome.Warnings),
		"elapsed_ms": elapsed.Milliseconds(),
		"result":     result,
	}).Info("font_cache_complete")
	return r.outcome, nil
}

// CacheFromCatalog 抓取并解析目录样式表，下载每个变体并合并进注册表。
// 状态流转：Fetching -> Parsing -> EnsuringFolder -> Downloading -> Persisting -> Done。
func (m *Manager) CacheFromCatalog(ctx context.Context, reference string) (*Outcome, error) {
	r := m.startRun(SourceCatalog)
	if m.fetcher == nil || m.downloader == nil {
		return r.fail(StageFetching, errors.New("catalog source not configured"))
	}

	ref, err := m.fetcher.Resolve(reference)
	if err != nil {
		return r.fail(StageFetching, err)
	}
	r.outcome.Family = ref.Family
	r.outcome.DisplayName = ref.Family

	release, ok := m.claim(familyClaimKey(ref.Family))
	if !ok {
		return r.fail(StagePending, font.ErrInFlight)
	}
	defer release()

	r.outcome.Stage = StageFetching
	var text string
	err = m.withRetry(ctx, r.fields(), func() error {
		var fetchErr error
		text, fetchErr = m.fetcher.Fetch(ctx, ref)
		return fetchErr
	})
	if err != nil {
		return r.fail(StageFetching, err)
	}

	r.outcome.Stage = StageParsing
	variants, err := catalog.Parse(text)
	if err != nil {
		return r.fail(StageParsing, err)
	}
	familyKey := font.FamilyKey(ref.Family)
	jobs := make([]job, 0, len(variants))
	for _, v := range variants {
		if font.FamilyKey(v.Descriptor.Family) != familyKey {
			continue
		}
		// 以样式表中的写法为准，通常比用户输入的大小写更规范。
		r.outcome.Family = v.Descriptor.Family
		r.outcome.DisplayName = v.Descriptor.Family
		sourceURL, err := catalog.ResolveSource(ref.URL, v.SourceURL)
		if err != nil {
			r.outcome.Failed = append(r.outcome.Failed, variantFailure(v.Descriptor, v.SourceURL, err))
			continue
		}
		jobs = append(jobs, job{
			descriptor: v.Descriptor,
			source:     sourceURL,
			fetch:      m.downloadJob(r, v.Descriptor, sourceURL),
		})
	}
	if len(jobs) == 0 && len(r.outcome.Failed) == 0 {
		return r.fail(StageParsing, fmt.Errorf("%w for %q", font.ErrNoVariants, ref.Family))
	}

	return m.materialize(ctx, r, jobs, StageDownloading, ref.URL)
}

func (m *Manager) downloadJob(r *run, d font.Descriptor, sourceURL string) func(ctx context.Context) (*storage.ReadResult, error) {
	return func(ctx context.Context) (*storage.ReadResult, error) {
		fields := r.fields()
		fields["variant"] = d.String()
		var body []byte
		err := m.withRetry(ctx, fields, func() error {
			var downloadErr error
			body, downloadErr = m.downloader.Download(ctx, sourceURL)
			return downloadErr
		})
		if err != nil {
			return nil, err
		}
		return &storage.ReadResult{Reader: nopSeekCloser{bytes.NewReader(body)}}, nil
	}
}

// CacheFromLocal 扫描本地目录并把识别出的变体拷贝进缓存。
// 状态流转：Scanning -> EnsuringFolder -> Copying -> Persisting -> Done。
func (m *Manager) CacheFromLocal(ctx context.Context, folder, family string) (*Outcome, error) {
	r := m.startRun(SourceLocal)
	r.outcome.Family = family

	absFolder, err := filepath.Abs(folder)
	if err != nil || folder == "" {
		if err == nil {
			err = errors.New("folder required")
		}
		return r.fail(StageScanning, font.NewFilesystemError("scan", folder, err))
	}

	releaseFolder, ok := m.claim("folder:" + absFolder)
	if !ok {
		return r.fail(StagePending, font.ErrInFlight)
	}
	defer releaseFolder()

	explicit := strings.TrimSpace(family) != ""
	if explicit && font.FamilyKey(family) == "" {
		return r.fail(StagePending, fmt.Errorf("%w: %q is not a family name", font.ErrInvalidReference, family))
	}
	if explicit {
		releaseFamily, ok := m.claim(familyClaimKey(family))
		if !ok {
			return r.fail(StagePending, font.ErrInFlight)
		}
		defer releaseFamily()
	}

	r.outcome.Stage = StageScanning
	scan, err := m.scanner.Scan(ctx, absFolder, family)
	if err != nil {
		return r.fail(StageScanning, err)
	}
	r.outcome.Family = scan.Family
	r.outcome.DisplayName = scan.DisplayName
	r.outcome.Warnings = scan.Warnings
	for _, w := range scan.Warnings {
		m.logger.WithFields(r.fields()).WithFields(logrus.Fields{
			"path":   w.Path,
			"reason": w.Reason,
		}).Warn("font_scan_warning")
	}
	if len(scan.Items) == 0 {
		return r.fail(StageScanning, fmt.Errorf("%w in %s", font.ErrNoVariants, absFolder))
	}

	// 未指定族名时，族名要扫描完才能确定，所以冲突只能在扫描之后发现。
	if !explicit {
		if font.FamilyKey(scan.Family) == "" {
			return r.fail(StageScanning, fmt.Errorf("%w: inferred family %q is not usable", font.ErrInvalidReference, scan.Family))
		}
		releaseFamily, ok := m.claim(familyClaimKey(scan.Family))
		if !ok {
			return r.fail(StagePending, font.ErrInFlight)
		}
		defer releaseFamily()
	}

	jobs := make([]job, 0, len(scan.Items))
	for _, item := range scan.Items {
		src := item.SourcePath
		jobs = append(jobs, job{
			descriptor: item.Descriptor,
			source:     src,
			fetch: func(ctx context.Context) (*storage.ReadResult, error) {
				result, err := m.store.Open(ctx, src)
				if err != nil {
					return nil, font.NewFilesystemError("open", src, err)
				}
				return result, nil
			},
		})
	}
	return m.materialize(ctx, r, jobs, StageCopying, "")
}

// materialize 确保族目录存在，并行写入所有变体，然后合并注册表。
func (m *Manager) materialize(ctx context.Context, r *run, jobs []job, writeStage Stage, sourceURL string) (*Outcome, error) {
	family := r.outcome.Family
	// 已有记录时沿用记录里的写法，保证同一族只对应一个目录。
	if existing, ok := m.registry.Get(family); ok && existing.Name != "" {
		family = existing.Name
		r.outcome.Family = existing.Name
	}

	r.outcome.Stage = StageEnsuringFolder
	if len(jobs) > 0 {
		if err := m.organizer.EnsureFolder(ctx, m.resolver.FamilyDir(family)); err != nil {
			return r.fail(StageEnsuringFolder, err)
		}
	}

	r.outcome.Stage = writeStage
	results := make([]jobResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(m.limit)
	for i := range jobs {
		g.Go(func() error {
			results[i] = m.writeVariant(ctx, family, jobs[i])
			return nil
		})
	}
	g.Wait()

	for i, res := range results {
		if res.err != nil {
			failure := variantFailure(jobs[i].descriptor, jobs[i].source, res.err)
			r.outcome.Failed = append(r.outcome.Failed, failure)
			m.metrics.Variant(string(r.outcome.Source), false, 0)
			m.logger.WithFields(r.fields()).WithFields(logrus.Fields{
				"variant": jobs[i].descriptor.String(),
				"source":  jobs[i].source,
				"error":   res.err.Error(),
			}).Warn("font_variant_failed")
			continue
		}
		r.outcome.Written = append(r.outcome.Written, *res.entry)
		m.metrics.Variant(string(r.outcome.Source), true, res.written)
	}
	if len(r.outcome.Written) == 0 {
		return r.fail(writeStage, fmt.Errorf("%w (%d variants)", font.ErrAllVariantsFailed, len(r.outcome.Failed)))
	}

	r.outcome.Stage = StagePersisting
	incoming := font.Record{
		Name:        family,
		DisplayName: r.outcome.DisplayName,
		SourceURL:   sourceURL,
		Files:       r.outcome.Written,
		CachedAt:    m.now(),
	}
	record, err := m.registry.Update(family, func(current *font.Record) (*font.Record, error) {
		merged := font.MergeRecord(current, incoming)
		return &merged, nil
	})
	if err != nil {
		return r.fail(StagePersisting, err)
	}
	m.metrics.SetFonts(m.registry.Len())
	return r.finish(*record)
}

func (m *Manager) writeVariant(ctx context.Context, family string, j job) jobResult {
	if err := ctx.Err(); err != nil {
		return jobResult{err: err}
	}
	body, err := j.fetch(ctx)
	if err != nil {
		return jobResult{err: err}
	}
	defer body.Reader.Close()

	target := m.resolver.CanonicalPath(family, j.descriptor)
	entry, err := m.store.WriteFile(ctx, target, body.Reader, storage.PutOptions{ModTime: body.Entry.ModTime})
	if err != nil {
		return jobResult{err: font.NewFilesystemError("write", target, err)}
	}
	rel, err := m.resolver.RelPath(entry.FilePath)
	if err != nil {
		return jobResult{err: font.NewFilesystemError("rel", entry.FilePath, err)}
	}
	return jobResult{
		entry: &font.FileEntry{
			Weight:    j.descriptor.Weight,
			Style:     j.descriptor.Style,
			Format:    j.descriptor.Format,
			LocalPath: rel,
		},
		written: entry.SizeBytes,
	}
}

func variantFailure(d font.Descriptor, source string, err error) VariantFailure {
	return VariantFailure{Descriptor: d, Source: source, Err: err, Message: err.Error()}
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }
