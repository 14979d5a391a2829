// Package caller provides a slim call-stack dump used by the kernel's
// diagnostic logger when it reports a corrupt PMEM record: the operator
// needs to know which recovery path found it, not a generic stack trace
// dumped to a console nobody reads in production.
package caller

import (
	"fmt"
	"runtime"
)

// Site formats the call stack starting at the given skip depth (as passed
// to runtime.Caller) into a single string, one frame per line, innermost
// first. depth 1 names Site's caller.
func Site(depth int) string {
	i := depth
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d", f, l)
		} else {
			s += fmt.Sprintf("\n\t<-%s:%d", f, l)
		}
	}
	return s
}
