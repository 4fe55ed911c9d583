// Package journal performs the small amount of direct ledger-file
// upkeep the pipeline needs: year-file include directives and standing
// account declarations. Everything else goes through the engine.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// EnsureYearInclude makes sure the root journal includes the year's
// ledger file exactly once, creating the year file if needed. A
// commented-out include line is ignored when deciding and never
// modified. Reports whether a line was added.
func EnsureYearInclude(journalPath, ledgerDir string, year int) (bool, error) {
	include := fmt.Sprintf("include %s/%d.journal", ledgerDir, year)

	yearFile := filepath.Join(filepath.Dir(journalPath), ledgerDir, fmt.Sprintf("%d.journal", year))
	if err := os.MkdirAll(filepath.Dir(yearFile), 0o755); err != nil {
		return false, fmt.Errorf("creating ledger dir: %w", err)
	}
	if _, err := os.Stat(yearFile); os.IsNotExist(err) {
		if err := os.WriteFile(yearFile, nil, 0o644); err != nil {
			return false, fmt.Errorf("creating year journal: %w", err)
		}
	}

	data, err := os.ReadFile(journalPath)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("reading journal: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ";") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if trimmed == include {
			return false, nil
		}
	}

	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += include + "\n"
	if err := os.WriteFile(journalPath, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("writing journal: %w", err)
	}
	return true, nil
}

var declarationRe = regexp.MustCompile(`^account\s+(.+)$`)

// Declarations returns the account names declared in a journal file.
func Declarations(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading journal: %w", err)
	}

	var accounts []string
	for _, line := range strings.Split(string(data), "\n") {
		if m := declarationRe.FindStringSubmatch(line); m != nil {
			accounts = append(accounts, declaredName(m[1]))
		}
	}
	return accounts, nil
}

// declaredName strips inline comments and declaration attributes.
func declaredName(rest string) string {
	if i := strings.Index(rest, ";"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.Index(rest, "  "); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

// EnsureDeclarations inserts standing declarations for any of the given
// accounts the journal does not declare yet, sorted lexically so parents
// precede children. Existing declarations, transactions, and comments
// are left untouched. Returns the accounts that were added.
func EnsureDeclarations(path string, accounts []string) ([]string, error) {
	declared, err := Declarations(path)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(declared))
	for _, a := range declared {
		have[a] = true
	}

	var missing []string
	for _, a := range accounts {
		if a != "" && !have[a] {
			have[a] = true
			missing = append(missing, a)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	sort.Strings(missing)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	lines := strings.Split(string(data), "\n")

	// New declarations go right after the last existing one, or at the
	// top of the file so they precede any transaction that uses them.
	insertAt := 0
	for i, line := range lines {
		if declarationRe.MatchString(line) {
			insertAt = i + 1
		}
	}

	block := make([]string, len(missing))
	for i, a := range missing {
		block[i] = "account " + a
	}

	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:insertAt]...)
	out = append(out, block...)
	out = append(out, lines[insertAt:]...)

	content := strings.Join(out, "\n")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing journal: %w", err)
	}
	return missing, nil
}
