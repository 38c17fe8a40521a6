package toolpolicy

import "testing"

func TestDoomLoopDetectorFlagsThirdIdenticalCall(t *testing.T) {
	d := NewDoomLoopDetector()
	args := map[string]any{"path": "/tmp/a"}

	if d.Check("s1", "read", args) {
		t.Fatal("first call should not be flagged")
	}
	if d.Check("s1", "read", args) {
		t.Fatal("second call should not be flagged")
	}
	if !d.Check("s1", "read", args) {
		t.Fatal("third identical call should be flagged")
	}
}

func TestDoomLoopDetectorIgnoresDistinctArguments(t *testing.T) {
	d := NewDoomLoopDetector()
	d.Check("s1", "read", map[string]any{"path": "/a"})
	d.Check("s1", "read", map[string]any{"path": "/b"})
	if d.Check("s1", "read", map[string]any{"path": "/c"}) {
		t.Fatal("varying arguments should never trip the detector")
	}
}

func TestDoomLoopDetectorIsPerSession(t *testing.T) {
	d := NewDoomLoopDetector()
	args := map[string]any{"path": "/a"}
	d.Check("s1", "read", args)
	d.Check("s1", "read", args)
	if d.Check("s2", "read", args) {
		t.Fatal("a different session should start with a clean history")
	}
}

func TestDoomLoopDetectorResetClearsHistory(t *testing.T) {
	d := NewDoomLoopDetector()
	args := map[string]any{"path": "/a"}
	d.Check("s1", "read", args)
	d.Check("s1", "read", args)
	d.Reset("s1")
	if d.Check("s1", "read", args) {
		t.Fatal("reset should have cleared the prior run")
	}
}
