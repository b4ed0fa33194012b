// SPDX-License-Identifier: MPL-2.0

package task

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// makeTargets extracts Makefile targets with a deliberately conservative
// heuristic: a target is a plain name followed by a colon at the start of a
// line. Pattern rules, variable assignments, special targets and anything
// the heuristic is unsure about are skipped rather than misreported.
func (d *Detector) makeTargets(inv *Inventory) {
	f, err := os.Open(filepath.Join(inv.Dir, "Makefile"))
	if err != nil {
		return
	}
	defer f.Close()

	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name, ok := makeTarget(sc.Text())
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		inv.Tasks = append(inv.Tasks, Task{
			Name:    name,
			Command: "make",
			Args:    []string{name},
			Source:  "Makefile",
		})
	}
}

// makeTarget parses one Makefile line into a target name, rejecting
// everything that is not an unambiguous plain rule.
func makeTarget(line string) (string, bool) {
	// Recipe lines and comments.
	if line == "" || strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "#") {
		return "", false
	}
	// Assignments look like targets up to the colon in "VAR := value".
	if strings.ContainsAny(line, "=") {
		return "", false
	}

	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return "", false
	}
	// "::" rules and target-specific variables both disqualify.
	if colon+1 < len(line) && line[colon+1] == ':' {
		return "", false
	}

	name := strings.TrimSpace(line[:colon])
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", false
	}
	// Pattern rules and special targets (.PHONY and friends).
	if strings.ContainsAny(name, "%$") || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}
