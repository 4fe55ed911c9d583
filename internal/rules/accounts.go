package rules

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// account1 assigns the statement's own account, account2 the category
// side; account2 lines usually sit inside conditional blocks.
var (
	accountDirectiveRe = regexp.MustCompile(`^\s*account[12]\s+(\S.*)$`)
	account1Re         = regexp.MustCompile(`^\s*account1\s+(\S.*)$`)
)

// Account1 returns the statement account a rules file posts to: the
// value of its first account1 directive, or "" when there is none.
func Account1(rulesFile string) (string, error) {
	f, err := os.Open(rulesFile)
	if err != nil {
		return "", fmt.Errorf("opening rules file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := account1Re.FindStringSubmatch(scanner.Text()); m != nil {
			return strings.TrimSpace(m[1]), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading rules file: %w", err)
	}
	return "", nil
}

// Accounts returns every account name referenced by a rules file,
// sorted and deduplicated.
func Accounts(rulesFile string) ([]string, error) {
	f, err := os.Open(rulesFile)
	if err != nil {
		return nil, fmt.Errorf("opening rules file: %w", err)
	}
	defer f.Close()

	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		if m := accountDirectiveRe.FindStringSubmatch(line); m != nil {
			seen[strings.TrimSpace(m[1])] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	accounts := make([]string, 0, len(seen))
	for a := range seen {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return accounts, nil
}
