package main

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"webar/internal/api"
)

func TestAssetLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)
	glb := writeGLB(t, env.baseDir, "red_armchair.glb")

	out, _, err := runCLI(t, []string{"asset", "add", glb, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("asset add: %v", err)
	}
	var added api.Asset
	if err := json.Unmarshal([]byte(out), &added); err != nil {
		t.Fatalf("decode add output: %v (%s)", err, out)
	}
	if !regexp.MustCompile(`^red-armchair-[a-f0-9]{8}$`).MatchString(added.Slug) {
		t.Fatalf("unexpected slug %q", added.Slug)
	}
	if added.Status != "ready" || added.USDZReady || added.Diagnostics == "" {
		t.Fatalf("expected fallback without converter, got %#v", added)
	}

	out, _, err = runCLI(t, []string{"asset", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("asset list: %v", err)
	}
	requireContains(t, out, added.Slug)
	requireContains(t, out, "Page 1 of 1 (1 total)")

	out, _, err = runCLI(t, []string{"asset", "show", added.Slug, "--yaml"}, env.configPath)
	if err != nil {
		t.Fatalf("asset show: %v", err)
	}
	var shown api.Asset
	if err := yaml.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if shown.ID != added.ID || shown.Name != "Red Armchair" {
		t.Fatalf("unexpected yaml asset: %#v", shown)
	}

	out, _, err = runCLI(t, []string{"asset", "url", strconv.FormatInt(added.ID, 10)}, env.configPath)
	if err != nil {
		t.Fatalf("asset url: %v", err)
	}
	if strings.TrimSpace(out) != "http://viewer.test/p/"+added.Slug {
		t.Fatalf("unexpected url %q", out)
	}
	if _, _, err := runCLI(t, []string{"asset", "url", added.Slug, "--format", "usdz"}, env.configPath); err == nil {
		t.Fatal("expected usdz url to be unavailable")
	}

	if _, _, err := runCLI(t, []string{"asset", "delete", strconv.FormatInt(added.ID, 10)}, env.configPath); err != nil {
		t.Fatalf("asset delete: %v", err)
	}
	if _, _, err := runCLI(t, []string{"asset", "show", added.Slug}, env.configPath); err == nil {
		t.Fatal("expected deleted asset to be gone")
	}
	if _, _, err := runCLI(t, []string{"asset", "delete", "999"}, env.configPath); err == nil {
		t.Fatal("expected error deleting unknown asset")
	}
}

func TestAssetAddRejectsInvalidUpload(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeGLB(t, env.baseDir, "model.obj")
	if _, _, err := runCLI(t, []string{"asset", "add", path}, env.configPath); err == nil {
		t.Fatal("expected extension validation error")
	}
	out, _, err := runCLI(t, []string{"asset", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("asset list: %v", err)
	}
	requireContains(t, out, "No assets found")
}

func TestAssetAddNoWaitRequiresDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	glb := writeGLB(t, env.baseDir, "lamp.glb")
	_, _, err := runCLI(t, []string{"asset", "add", glb, "--no-wait", "--name", "Desk Lamp"}, env.configPath)
	if !errors.Is(err, errNoWaitWithoutDaemon) {
		t.Fatalf("expected no-wait refusal, got %v", err)
	}
	out, _, err := runCLI(t, []string{"asset", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("asset list: %v", err)
	}
	requireContains(t, out, "No assets found")
}

func TestJSONAndYAMLAreExclusive(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"asset", "list", "--json", "--yaml"}, env.configPath); err == nil {
		t.Fatal("expected flag conflict error")
	}
}
