package descriptor

import "fmt"

// DuplicateNameError is returned by Register when a descriptor with the same
// name is already in the store. It is fatal to that call only.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("component %q is already registered", e.Name)
}

// NotFoundError is returned by Get for names the store has never seen.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("component %q is not registered", e.Name)
}
