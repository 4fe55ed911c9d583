// Package rules associates classified statement files with the
// hand-authored hledger rules files that transform them. Each rules file
// names its input via a source directive; matching walks four strictly
// ordered tiers so that a file moved between pipeline stages still binds
// to the rules authored against its original location.
package rules

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Mapping maps a source locator (absolute path or glob pattern from a
// rules file's source directive) to the rules file that declared it.
// Rebuilt by scanning the rules directory on every run, never mutated.
type Mapping map[string]string

// RulesExt is the file extension of hledger rules files.
const RulesExt = ".rules"

// BuildMapping scans every rules file in dir and records its source
// locator. Relative locators resolve against the rules file's own
// directory; glob characters are preserved, not expanded.
func BuildMapping(dir string) (Mapping, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving rules dir: %w", err)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("reading rules dir: %w", err)
	}

	m := make(Mapping)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), RulesExt) {
			continue
		}
		path := filepath.Join(absDir, e.Name())
		locator, err := Source(path)
		if err != nil {
			return nil, err
		}
		if locator == "" {
			continue
		}
		if !filepath.IsAbs(locator) {
			// Plain concatenation: cleaning here would collapse
			// ".." segments and break the exact-match tier.
			locator = absDir + string(os.PathSeparator) + locator
		}
		m[locator] = path
	}
	return m, nil
}

// Source extracts the locator from the first non-comment source
// directive of a rules file, or "" when the file has none.
func Source(rulesFile string) (string, error) {
	f, err := os.Open(rulesFile)
	if err != nil {
		return "", fmt.Errorf("opening rules file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "source" {
			return fields[1], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading rules file: %w", err)
	}
	return "", nil
}

// Match finds the rules file for a classified CSV. Tiers, in order:
// exact locator match, normalized-path match, glob match, and finally a
// filename fallback on the locator's literal prefix. Path and glob
// matches always beat the fallback; among fallback candidates the
// longest literal prefix wins.
func Match(csvPath string, m Mapping) (string, bool) {
	// Tier 1: exact.
	if rulesFile, ok := m[csvPath]; ok {
		return rulesFile, true
	}

	locators := make([]string, 0, len(m))
	for loc := range m {
		locators = append(locators, loc)
	}
	sort.Strings(locators)

	// Tier 2: normalized path.
	clean := filepath.Clean(csvPath)
	for _, loc := range locators {
		if !isGlob(loc) && filepath.Clean(loc) == clean {
			return m[loc], true
		}
	}

	// Tier 3: glob.
	for _, loc := range locators {
		if !isGlob(loc) {
			continue
		}
		if ok, _ := filepath.Match(loc, csvPath); ok {
			return m[loc], true
		}
		if ok, _ := filepath.Match(filepath.Clean(loc), clean); ok {
			return m[loc], true
		}
	}

	// Tier 4: filename fallback, longest literal prefix wins.
	base := filepath.Base(csvPath)
	best := ""
	bestLen := -1
	for _, loc := range locators {
		prefix := literalPrefix(filepath.Base(loc))
		if prefix == "" || !strings.HasPrefix(base, prefix) {
			continue
		}
		if len(prefix) > bestLen {
			best = m[loc]
			bestLen = len(prefix)
		}
	}
	if bestLen >= 0 {
		return best, true
	}
	return "", false
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// literalPrefix returns the part of a name before its first wildcard.
func literalPrefix(name string) string {
	if i := strings.IndexAny(name, "*?["); i >= 0 {
		return name[:i]
	}
	return name
}
