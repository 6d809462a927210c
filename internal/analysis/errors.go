package analysis

import (
	"errors"
	"fmt"

	"github.com/kmatsuda/textlens/pkg/models"
)

var (
	// ErrUnknownTask marks a request naming a task outside the fixed vocabulary.
	ErrUnknownTask = errors.New("unknown analysis task")
	// ErrEmptyText marks a request with no text to analyze.
	ErrEmptyText = errors.New("missing text")
)

// ValidateTasks checks every requested and skipped task name against the
// fixed vocabulary. Callers run this before submitting a job so malformed
// input never consumes a worker slot.
func ValidateTasks(tasks, skipTasks []string) error {
	for _, name := range tasks {
		if !models.KnownTask(name) {
			return fmt.Errorf("%w: %q", ErrUnknownTask, name)
		}
	}
	for _, name := range skipTasks {
		if !models.KnownTask(name) {
			return fmt.Errorf("%w: %q", ErrUnknownTask, name)
		}
	}
	return nil
}
