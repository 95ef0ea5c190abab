package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestResolveKeepsLinkerValues(t *testing.T) {
	info := resolve("v0.4.0", "abc1234")
	if info.Version != "v0.4.0" {
		t.Errorf("Version = %q, want %q", info.Version, "v0.4.0")
	}
	if info.Commit != "abc1234" {
		t.Errorf("Commit = %q, want %q", info.Commit, "abc1234")
	}
}

func TestApplyBuildSettings(t *testing.T) {
	var info Info
	applyBuildSettings(&info, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
	})
	if info.Commit != "0123456" {
		t.Errorf("Commit = %q, want %q", info.Commit, "0123456")
	}
	if !info.Dirty {
		t.Error("Dirty = false, want true")
	}
	if got := info.String(); !strings.Contains(got, "0123456-dirty") {
		t.Errorf("String() = %q, want dirty commit", got)
	}
}

func TestFullNeverEmpty(t *testing.T) {
	if Full() == "" {
		t.Error("Full() is empty")
	}
}
