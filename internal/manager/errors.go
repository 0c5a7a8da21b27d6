// internal/manager/errors.go
package manager

import (
	"fmt"

	"github.com/talpslabs/talps/internal/models"
)

// StateError reports an operation applied in a lifecycle state that does
// not permit it, e.g. submitting to a manager that has been shut down.
type StateError struct {
	Op     string
	Status models.ManagerStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s: task manager is %s", e.Op, e.Status)
}
