package manager

import (
	"fmt"
)

// Stage 是缓存流程所处的阶段，失败时用于定位。
type Stage string

const (
	StagePending        Stage = "pending"
	StageFetching       Stage = "fetching"
	StageParsing        Stage = "parsing"
	StageEnsuringFolder Stage = "ensuring_folder"
	StageDownloading    Stage = "downloading"
	StageScanning       Stage = "scanning"
	StageCopying        Stage = "copying"
	StagePersisting     Stage = "persisting"
	StageDone           Stage = "done"
)

// Source 区分缓存来源。
type Source string

const (
	SourceCatalog Source = "catalog"
	SourceLocal   Source = "local"
)

// WorkflowError 是缓存流程的终止错误，Err 保留原始分类以便 errors.Is/As 判断。
type WorkflowError struct {
	Family string
	Stage  Stage
	Err    error
}

func (e *WorkflowError) Error() string {
	if e.Family == "" {
		return fmt.Sprintf("cache failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("cache %q failed at %s: %v", e.Family, e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
