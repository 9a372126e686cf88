package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), strings.NewReader(""), &out, &out, []string{"version"}); err != nil {
		t.Fatalf("run version: %v", err)
	}
	if !strings.Contains(out.String(), "Werkstatt") {
		t.Errorf("output = %q, want banner", out.String())
	}
}

func TestRunVersionJSON(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), strings.NewReader(""), &out, &out, []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("run version: %v", err)
	}

	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("output not JSON: %v\n%s", err, out.String())
	}
	if info["version"] == "" {
		t.Errorf("version missing: %v", info)
	}
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), strings.NewReader(""), &out, &out, []string{"--help"}); err != nil {
		t.Fatalf("run help: %v", err)
	}
	if !strings.Contains(out.String(), "Usage: werkstatt") {
		t.Errorf("output = %q, want usage", out.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader(""), &out, &out, []string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("err = %v, want unknown command", err)
	}
}

func TestRunUnknownFlag(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader(""), &out, &out, []string{"-bogus"})
	if err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestRunBadOutputFormat(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader(""), &out, &out, []string{"-o", "xml", "version"})
	if err == nil {
		t.Error("bad output format accepted")
	}
}

func TestRunAskRequiresQuestion(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader(""), &out, &out, []string{"ask"})
	if err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("err = %v, want usage error", err)
	}
}

func TestRunExplicitConfigMissing(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader(""), &out, &out, []string{"-config", "/does/not/exist.yaml", "chat"})
	if err == nil {
		t.Error("missing explicit config accepted")
	}
}
