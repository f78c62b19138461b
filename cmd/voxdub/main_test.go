package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunExitCodes(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"--help"}, &stderr); code != 0 {
		t.Fatalf("--help exited %d: %s", code, stderr.String())
	}
	stderr.Reset()
	if code := run([]string{"definitely-not-a-command"}, &stderr); code != 1 {
		t.Fatalf("unknown command exited %d", code)
	}
	if !strings.HasPrefix(stderr.String(), "voxdub: unknown command") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}
