// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestScanAncestorWalk(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, root, ".nvmrc", "20.10.0\n")

	got := New().Scan(deep)

	req, ok := got["node"]
	if !ok {
		t.Fatalf("Scan() = %v, want a node requirement", got)
	}
	if req.Spec != "20.10.0" {
		t.Errorf("node spec = %q, want %q", req.Spec, "20.10.0")
	}
}

func TestScanClosestWinsPerRuntime(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "app")
	if err := os.Mkdir(child, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, root, ".nvmrc", "18.0.0")
	writeFile(t, child, ".nvmrc", "20.10.0")
	writeFile(t, root, ".python-version", "3.12.1")

	got := New().Scan(child)

	if got["node"].Spec != "20.10.0" {
		t.Errorf("node spec = %q, want closest file to win", got["node"].Spec)
	}
	if got["python"].Spec != "3.12.1" {
		t.Errorf("python spec = %q, want ancestor file to fill the gap", got["python"].Spec)
	}
}

func TestScanNodeVersionBeatsNvmrc(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".nvmrc", "18.0.0")
	writeFile(t, dir, ".node-version", "22.0.0")

	got := New().Scan(dir)

	if got["node"].Spec != "22.0.0" {
		t.Errorf("node spec = %q, want .node-version to win over .nvmrc", got["node"].Spec)
	}
}

func TestScanPackageJSONEnginesBeatVolta(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{
		"engines": {"node": "22.0.0"},
		"volta":   {"node": "16.0.0", "bun": "1.1.0"}
	}`)

	got := New().Scan(dir)

	if got["node"].Spec != "22.0.0" {
		t.Errorf("node spec = %q, want engines to win over volta", got["node"].Spec)
	}
	if got["bun"].Spec != "1.1.0" {
		t.Errorf("bun spec = %q, want volta to apply when engines is silent", got["bun"].Spec)
	}
}

func TestScanToolVersionsAliasFolding(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".tool-versions", `# pinned tools
nodejs 20.10.0
golang 1.22.1
terraform 1.7.0
short
`)

	got := New().Scan(dir)

	if got["node"].Spec != "20.10.0" {
		t.Errorf("node spec = %q, want nodejs folded to node", got["node"].Spec)
	}
	if got["go"].Spec != "1.22.1" {
		t.Errorf("go spec = %q, want golang folded to go", got["go"].Spec)
	}
	// Unknown runtimes pass through for the fallback backend.
	if got["terraform"].Spec != "1.7.0" {
		t.Errorf("terraform spec = %q, want pass-through", got["terraform"].Spec)
	}
}

func TestScanGoMod(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/demo\n\ngo 1.22\n\nrequire golang.org/x/sync v0.7.0\n")

	got := New().Scan(dir)

	if got["go"].Spec != "1.22" {
		t.Errorf("go spec = %q, want %q", got["go"].Spec, "1.22")
	}
}

func TestScanRustToolchain(t *testing.T) {
	t.Run("toml", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "rust-toolchain.toml", "[toolchain]\nchannel = \"1.80.0\"\n")

		got := New().Scan(dir)
		if got["rust"].Spec != "1.80.0" {
			t.Errorf("rust spec = %q, want %q", got["rust"].Spec, "1.80.0")
		}
	})

	t.Run("plain", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "rust-toolchain", "stable\n")

		got := New().Scan(dir)
		if got["rust"].Spec != "stable" {
			t.Errorf("rust spec = %q, want %q", got["rust"].Spec, "stable")
		}
	})
}

func TestScanMiseTOMLValueForms(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".mise.toml", `[tools]
nodejs = "20.10.0"
python = ["3.12.1", "3.11.8"]
ruby = { version = "3.3.0" }
empty = []
`)

	got := New().Scan(dir)

	if got["node"].Spec != "20.10.0" {
		t.Errorf("node spec = %q, want bare string form", got["node"].Spec)
	}
	if got["python"].Spec != "3.12.1" {
		t.Errorf("python spec = %q, want first array element", got["python"].Spec)
	}
	if got["ruby"].Spec != "3.3.0" {
		t.Errorf("ruby spec = %q, want table version key", got["ruby"].Spec)
	}
	if _, ok := got["empty"]; ok {
		t.Error("empty array value should yield no requirement")
	}
}

func TestScanMalformedFilesAreIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{broken`)
	writeFile(t, dir, ".mise.toml", `[tools`)
	writeFile(t, dir, "rust-toolchain.toml", `channel ===`)
	writeFile(t, dir, ".nvmrc", "20.10.0")

	got := New().Scan(dir)

	if len(got) != 1 || got["node"].Spec != "20.10.0" {
		t.Errorf("Scan() = %v, want only the readable .nvmrc requirement", got)
	}
}

func TestScanStripsVPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".nvmrc", "v18.19.0")

	got := New().Scan(dir)
	if got["node"].Spec != "18.19.0" {
		t.Errorf("node spec = %q, want v-prefix stripped", got["node"].Spec)
	}
}

func TestCanonicalRuntime(t *testing.T) {
	tests := []struct{ in, want string }{
		{"nodejs", "node"},
		{"NodeJS", "node"},
		{"golang", "go"},
		{"python3", "python"},
		{"openjdk", "java"},
		{"rust", "rust"},
		{" node ", "node"},
	}
	for _, tt := range tests {
		if got := CanonicalRuntime(tt.in); got != tt.want {
			t.Errorf("CanonicalRuntime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPackageManager(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"packageManager": "pnpm@9.1.0"}`)

	if got := PackageManager(dir); got != "pnpm" {
		t.Errorf("PackageManager() = %q, want %q", got, "pnpm")
	}

	if got := PackageManager(t.TempDir()); got != "" {
		t.Errorf("PackageManager() = %q on empty dir, want empty", got)
	}
}
