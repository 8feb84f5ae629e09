package pipeline

import (
	"errors"
	"fmt"
)

// Registry-level errors, surfaced before any pipeline runs.
var (
	// ErrNotFound is returned when no pipeline is registered under a
	// requested strategy name.
	ErrNotFound = errors.New("no pipeline registered for strategy")

	// ErrDuplicateStrategy is returned when a strategy name is
	// registered twice.
	ErrDuplicateStrategy = errors.New("pipeline already registered for strategy")

	// ErrConfiguration is returned for invalid pipeline construction,
	// such as a transform chain with more than one embedding transform.
	ErrConfiguration = errors.New("invalid pipeline configuration")
)

// Stage identifies the pipeline step that produced a failure.
type Stage string

const (
	StageStore         Stage = "store"
	StageMetadata      Stage = "metadata_creation"
	StageFileService   Stage = "file_service"
	StageFileLoading   Stage = "file_loading"
	StageNodeParsing   Stage = "node_parsing"
	StageNodeIngestion Stage = "node_ingestion"
	StageStoreAddition Stage = "store_addition"
	StageStep          Stage = "step"
)

// StepError is a pipeline failure tagged with the stage that produced it.
// Per-file step errors are caught at the file boundary and never
// propagate past the pipeline; a StageStore error is request-fatal.
type StepError struct {
	Stage  Stage
	FileID string
	Err    error
}

func (e *StepError) Error() string {
	if e.FileID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: file %q: %v", e.Stage, e.FileID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(stage Stage, fileID string, err error) *StepError {
	return &StepError{Stage: stage, FileID: fileID, Err: err}
}
