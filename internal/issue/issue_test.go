// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestId_Constants(t *testing.T) {
	// Verify all IDs are unique and sequential
	ids := []Id{
		VersionNotFoundId,
		ChecksumMismatchId,
		RuntimeNotInstalledId,
		UnsupportedArchId,
		TaskNotFoundId,
		InstallDeclinedId,
		ConfigLoadFailedId,
		CatalogFetchFailedId,
		InstallInProgressId,
	}

	seen := make(map[Id]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	// Verify IDs start at 1 (iota + 1)
	if VersionNotFoundId != 1 {
		t.Errorf("VersionNotFoundId = %d, want 1", VersionNotFoundId)
	}
}

func TestIssue_Id(t *testing.T) {
	issue := Get(VersionNotFoundId)
	if issue == nil {
		t.Fatal("Get(VersionNotFoundId) returned nil")
	}

	if issue.Id() != VersionNotFoundId {
		t.Errorf("issue.Id() = %d, want %d", issue.Id(), VersionNotFoundId)
	}
}

func TestIssue_MarkdownMsg(t *testing.T) {
	issue := Get(ChecksumMismatchId)
	if issue == nil {
		t.Fatal("Get(ChecksumMismatchId) returned nil")
	}

	msg := issue.MarkdownMsg()
	if msg == "" {
		t.Error("MarkdownMsg() returned empty string")
	}

	if !strings.Contains(string(msg), "checksum") {
		t.Error("MarkdownMsg() should mention the checksum")
	}
}

func TestIssue_DocLinks(t *testing.T) {
	issue := Get(VersionNotFoundId)
	if issue == nil {
		t.Fatal("Get(VersionNotFoundId) returned nil")
	}

	// DocLinks returns a clone of the links
	links := issue.DocLinks()
	if links == nil {
		// nil is acceptable if no doc links are set
		return
	}

	// Modifying the returned slice should not affect the original
	if len(links) > 0 {
		original := links[0]
		links[0] = "modified"
		newLinks := issue.DocLinks()
		if len(newLinks) > 0 && newLinks[0] != original {
			t.Error("DocLinks() should return a clone")
		}
	}
}

func TestIssue_Render(t *testing.T) {
	// Mock the render function for testing
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	issue := Get(TaskNotFoundId)
	if issue == nil {
		t.Fatal("Get(TaskNotFoundId) returned nil")
	}

	rendered, err := issue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	if rendered == "" {
		t.Error("Render() returned empty string")
	}

	if !strings.Contains(rendered, "Task not found") {
		t.Error("Render() output should contain 'Task not found'")
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{VersionNotFoundId, false, "Version not found"},
		{ChecksumMismatchId, false, "checksum mismatch"},
		{RuntimeNotInstalledId, false, "not installed"},
		{UnsupportedArchId, false, "Unsupported architecture"},
		{TaskNotFoundId, false, "Task not found"},
		{InstallDeclinedId, false, "Install declined"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{CatalogFetchFailedId, false, "release catalog"},
		{InstallInProgressId, false, "already in progress"},
		{Id(9999), true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}

			if tt.contains != "" && !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain '%s'", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	all := Values()

	if len(all) != len(issues) {
		t.Errorf("Values() returned %d issues, want %d", len(all), len(issues))
	}

	for _, issue := range all {
		if Get(issue.Id()) != issue {
			t.Errorf("Values() entry %d not reachable via Get", issue.Id())
		}
	}
}
