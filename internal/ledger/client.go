// Package ledger drives the external hledger engine. The engine is both
// the sink and the verifier of every import, so all calls go through an
// injectable executor and nothing here touches journal files directly.
package ledger

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bankpipe-dev/bankpipe/internal/balance"
	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
)

// DefaultBinary is the hledger executable name.
const DefaultBinary = "hledger"

const dateFormat = "2006-01-02"

// Client invokes hledger through an executor.
type Client struct {
	exec   cmdexec.Executor
	binary string
}

// NewClient creates a Client using the default binary name.
func NewClient(exec cmdexec.Executor) *Client {
	return &Client{exec: exec, binary: DefaultBinary}
}

func (c *Client) run(dir string, args ...string) (cmdexec.Result, error) {
	res, err := c.exec.Run(dir, c.binary, args...)
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, fmt.Errorf("%s %s: %s", c.binary, args[0], res.Output())
	}
	return res, nil
}

// Print returns the dry-run preview of the transactions a rules file
// would generate, without mutating any journal.
func (c *Client) Print(dir, rulesFile string) (string, error) {
	res, err := c.run(dir, "print", "-f", rulesFile)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Import commits the transactions of a rules file into the journal.
func (c *Client) Import(dir, journal, rulesFile string) error {
	_, err := c.run(dir, "import", "-f", journal, rulesFile)
	return err
}

// CheckStrict runs hledger's strict consistency check on the journal.
func (c *Client) CheckStrict(dir, journal string) error {
	_, err := c.run(dir, "check", "--strict", "-f", journal)
	return err
}

// Balances returns the full balance report for the journal.
func (c *Client) Balances(dir, journal string) (string, error) {
	res, err := c.run(dir, "bal", "-f", journal)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// LastTransactionDate returns the date of the most recent transaction
// posted to an account, or the zero time when the register is empty.
func (c *Client) LastTransactionDate(dir, account, journal string) (time.Time, error) {
	res, err := c.run(dir, "register", account, "-f", journal, "-O", "csv")
	if err != nil {
		return time.Time{}, err
	}

	r := csv.NewReader(strings.NewReader(res.Stdout))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing register output: %w", err)
	}
	if len(records) < 2 {
		return time.Time{}, nil
	}

	dateCol := 1
	for i, name := range records[0] {
		if strings.Trim(name, `"`) == "date" {
			dateCol = i
			break
		}
	}

	last := records[len(records)-1]
	if dateCol >= len(last) {
		return time.Time{}, fmt.Errorf("register output has no date column")
	}
	t, err := time.Parse(dateFormat, last[dateCol])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing register date %q: %w", last[dateCol], err)
	}
	return t, nil
}

var balanceLineRe = regexp.MustCompile(`^\s*(.+?)\s{2,}(\S.*)$`)

// BalanceAsOf reads an account's balance as of an exclusive end date.
// Returns a zero balance when the account has no postings before the
// date.
func (c *Client) BalanceAsOf(dir, account, journal string, endExclusive time.Time) (balance.Balance, error) {
	res, err := c.run(dir, "bal", account, "-f", journal,
		"-e", endExclusive.Format(dateFormat), "-N", "--flat")
	if err != nil {
		return balance.Balance{}, err
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := balanceLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		b, err := balance.Parse(strings.TrimSpace(m[1]))
		if err != nil {
			return balance.Balance{}, fmt.Errorf("parsing balance line %q: %w", line, err)
		}
		return b, nil
	}
	return balance.Balance{}, nil
}
