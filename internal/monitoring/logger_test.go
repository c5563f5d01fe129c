package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	defer SetLogger(nil)

	var captured string
	SetLogger(func(format string, v ...interface{}) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("frame %d dropped", 42)
	if captured != "frame 42 dropped" {
		t.Fatalf("unexpected capture: %q", captured)
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	SetLogger(nil)
	// Must not panic.
	Logf("should be dropped")
}

func TestDebugfGatedByVerbose(t *testing.T) {
	defer SetLogger(nil)
	defer SetVerbose(false)

	var calls int
	SetLogger(func(format string, v ...interface{}) { calls++ })

	SetVerbose(false)
	Debugf("quiet")
	if calls != 0 {
		t.Fatalf("Debugf logged while verbose disabled")
	}

	SetVerbose(true)
	Debugf("loud")
	if calls != 1 {
		t.Fatalf("Debugf did not log while verbose enabled: calls=%d", calls)
	}
}
