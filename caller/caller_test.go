package caller

import (
	"strings"
	"testing"
)

func TestSiteIncludesCaller(t *testing.T) {
	s := wrapper()
	if !strings.Contains(s, "caller_test.go") {
		t.Fatalf("Site output missing this test file: %q", s)
	}
}

func wrapper() string {
	return Site(1)
}
