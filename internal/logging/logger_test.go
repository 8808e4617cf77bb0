package logging

import "testing"

func TestBuildLevels(t *testing.T) {
	for _, lvl := range []string{"", "info", "DEBUG", "warn", "warning", "error"} {
		if _, _, err := Build(lvl); err != nil {
			t.Fatalf("Build(%q): %v", lvl, err)
		}
	}
	if _, _, err := Build("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestDebugEnablesV1(t *testing.T) {
	log, _, err := Build("debug")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !log.V(1).Enabled() {
		t.Fatalf("V(1) disabled at debug level")
	}
	log, _, _ = Build("info")
	if log.V(1).Enabled() {
		t.Fatalf("V(1) enabled at info level")
	}
}

func TestLevelForceDebug(t *testing.T) {
	if Level("warn", true) != "debug" || Level("warn", false) != "warn" {
		t.Fatalf("unexpected level resolution")
	}
}
