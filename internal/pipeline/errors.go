package pipeline

import (
	"fmt"
	"strings"
)

// SchemaError reports that an uploaded dataset cannot be validated: either
// required columns are missing, or no row carried a parseable date. It is
// recoverable and surfaced to the uploader with the exact column names.
type SchemaError struct {
	// Missing lists the required columns absent from the dataset.
	Missing []string

	// Reason is set instead of Missing for non-column failures, e.g.
	// "no parseable dates".
	Reason string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema error: missing required columns: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("schema error: %s", e.Reason)
}

// EmptyDatasetError reports that the uploaded dataset has zero rows.
type EmptyDatasetError struct{}

func (e *EmptyDatasetError) Error() string {
	return "dataset is empty"
}

// MissingColumnError is raised mid-pipeline when a stage needs a field an
// upstream stage should have produced, e.g. the recurrence detector running
// on rows that never went through merchant resolution.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column: %s", e.Column)
}
