package main

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matsen/pubreview/internal/config"
	"github.com/matsen/pubreview/internal/records"
)

func TestApplyFlags(t *testing.T) {
	base := config.Config{
		DataPath:  "libgen_results.jsonl",
		MemberKey: "member_id",
		IndexPath: filepath.Join(".pubreview", "libgen_results.db"),
		LogLevel:  "warn",
	}

	tests := []struct {
		name                   string
		data, memberKey, index string
		want                   config.Config
	}{
		{"none", "", "", "", base},
		{
			"data moves index", "/d/other.jsonl", "", "",
			config.Config{DataPath: "/d/other.jsonl", MemberKey: "member_id", IndexPath: "/d/.pubreview/other.db", LogLevel: "warn"},
		},
		{
			"explicit index wins", "/d/other.jsonl", "CITR member", "/tmp/ix.db",
			config.Config{DataPath: "/d/other.jsonl", MemberKey: "CITR member", IndexPath: "/tmp/ix.db", LogLevel: "warn"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			applyFlags(&c, tt.data, tt.memberKey, tt.index)
			if diff := cmp.Diff(tt.want, c); diff != "" {
				t.Errorf("applyFlags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&records.NotFoundError{Path: "x"}, ExitDataNotFound},
		{&records.ParseError{Path: "x", Line: 3, Reason: "bad"}, ExitDataError},
		{fmt.Errorf("disk on fire"), ExitError},
	}
	for _, tt := range tests {
		if got := loadExitCode(tt.err); got != tt.want {
			t.Errorf("loadExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}

	if got := loadErrorMessage(&records.NotFoundError{Path: "r.jsonl"}, "r.jsonl"); got != "Data file not found: r.jsonl" {
		t.Errorf("loadErrorMessage = %q", got)
	}
}

func TestNormalizeKey(t *testing.T) {
	for _, in := range []string{"data-path", "data_path", "dataPath", "DATA_PATH"} {
		if got := normalizeKey(in); got != "data-path" {
			t.Errorf("normalizeKey(%q) = %q", in, got)
		}
	}
}

func TestConfigValueRoundTrip(t *testing.T) {
	var c config.Config
	for _, key := range []string{"data-path", "member-key", "index-path", "log-level"} {
		if !setConfigValue(&c, key, key+"-value") {
			t.Fatalf("setConfigValue(%q) = false", key)
		}
		got, ok := configValue(&c, key)
		if !ok || got != key+"-value" {
			t.Errorf("configValue(%q) = %q, %v", key, got, ok)
		}
	}
	if setConfigValue(&c, "pdf-root", "x") {
		t.Error("setConfigValue accepted an unknown key")
	}
	if _, ok := configValue(&c, "pdf-root"); ok {
		t.Error("configValue accepted an unknown key")
	}
}
