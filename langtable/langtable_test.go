package langtable

import (
	"os"
	"testing"
)

func TestDefaultsLookup(t *testing.T) {
	tbl := New(nil)
	for _, lang := range []string{"python", "r", "bash"} {
		if _, ok := tbl.Lookup(lang); !ok {
			t.Errorf("expected default entry for %s", lang)
		}
	}
	if _, ok := tbl.Lookup("cobol"); ok {
		t.Error("expected no entry for unsupported language")
	}
}

func TestEnvOverride(t *testing.T) {
	os.Setenv("EGG_CMD_PYTHON", "/opt/special/python -X utf8")
	defer os.Unsetenv("EGG_CMD_PYTHON")

	tbl := New(nil)
	cmd, ok := tbl.Lookup("python")
	if !ok {
		t.Fatal("expected python entry")
	}
	if len(cmd) != 3 || cmd[0] != "/opt/special/python" {
		t.Errorf("unexpected override command: %v", cmd)
	}
}

func TestExtraMapping(t *testing.T) {
	tbl := New(map[string][]string{"lua": {"lua5.4"}})
	cmd, ok := tbl.Lookup("lua")
	if !ok || cmd[0] != "lua5.4" {
		t.Fatalf("expected extra mapping, got %v, %v", cmd, ok)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	tbl := New(nil)
	cmd, _ := tbl.Lookup("bash")
	cmd[0] = "mutated"
	cmd2, _ := tbl.Lookup("bash")
	if cmd2[0] == "mutated" {
		t.Error("Lookup should return an independent copy")
	}
}
