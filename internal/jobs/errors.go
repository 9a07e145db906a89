package jobs

import (
	"fmt"

	"github.com/sabanasdb/internal/database"
	"github.com/sabanasdb/internal/storage"
)

// ErrNotFound is the storage sentinel re-exported so callers branching
// on accept failures need only this package.
var ErrNotFound = storage.ErrFileNotFound

// StateConflictError reports an attempt to accept a file that is not in
// the uploaded state. The API layer maps it to 409 and echoes the state
// the file was actually in.
type StateConflictError struct {
	FileID  int64
	Current database.FileState
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("file %d is in state %q, expected %q", e.FileID, e.Current, database.StateUploaded)
}
