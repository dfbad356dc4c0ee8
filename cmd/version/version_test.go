package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	CMD.SetOut(&out)
	CMD.Run(CMD, nil)

	got := out.String()
	if !strings.Contains(got, "version: "+version) {
		t.Errorf("expected version %s in %q", version, got)
	}
	if !strings.Contains(got, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("expected platform in %q", got)
	}
}
