package toposort

import (
	"fmt"
	"strings"
)

// CyclicDependencyError reports that the graph contains a dependency cycle,
// so no valid load order exists. Path holds the members of the cycle in
// cyclic order, starting at the node the traversal re-entered.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	closed := append(append([]string(nil), e.Path...), e.Path[0])
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(closed, " -> "))
}

// newCycleError cuts the cycle out of the traversal stack. entry is the gray
// node the walk revisited; everything from its stack position onward is the
// cycle.
func newCycleError(stack []string, entry string) *CyclicDependencyError {
	start := 0
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == entry {
			start = i
			break
		}
	}
	return &CyclicDependencyError{Path: append([]string(nil), stack[start:]...)}
}
