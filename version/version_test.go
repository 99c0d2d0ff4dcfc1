package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGoInfo(t *testing.T) {
	if !strings.HasPrefix(GoInfo, runtime.Version()) {
		t.Errorf("GoInfo = %q, want prefix %q", GoInfo, runtime.Version())
	}
	if !strings.Contains(GoInfo, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("GoInfo = %q, missing platform", GoInfo)
	}
}
