package ledger

import (
	"bufio"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankpipe-dev/bankpipe/internal/balance"
	"github.com/bankpipe-dev/bankpipe/internal/model"
)

// Preview summarizes a dry-run print: transaction count, date range,
// and every posting routed to a sentinel unknown account.
type Preview struct {
	Transactions int
	First, Last  time.Time
	Unknown      []model.UnknownPosting
}

// Merge folds another preview into this one.
func (p *Preview) Merge(other *Preview) {
	p.Transactions += other.Transactions
	if p.First.IsZero() || (!other.First.IsZero() && other.First.Before(p.First)) {
		p.First = other.First
	}
	if other.Last.After(p.Last) {
		p.Last = other.Last
	}
	p.Unknown = append(p.Unknown, other.Unknown...)
}

// ParsePreview reads hledger print output line by line. The grammar is
// a transaction header line (date, optional status mark, description)
// followed by zero or more indented posting lines (account, then amount
// separated by two or more spaces).
func ParsePreview(out string) (*Preview, error) {
	p := &Preview{}
	running := decimal.Zero

	var txnDate time.Time
	var txnDesc string
	inTxn := false

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			inTxn = false
			continue
		}

		if date, desc, ok := parseHeaderLine(line); ok {
			p.Transactions++
			txnDate, txnDesc = date, desc
			inTxn = true
			if p.First.IsZero() || date.Before(p.First) {
				p.First = date
			}
			if date.After(p.Last) {
				p.Last = date
			}
			continue
		}

		if !inTxn {
			continue
		}
		account, amount, ok := parsePostingLine(line)
		if !ok {
			continue
		}
		if account != model.UnknownIncomeAccount && account != model.UnknownExpenseAccount {
			continue
		}

		// The amount is best-effort: an unparseable amount still
		// reports the posting, just without a figure.
		var amt decimal.Decimal
		var currency string
		if b, err := balance.Parse(amount); err == nil {
			amt = b.Amount
			currency = b.Currency
		}
		running = running.Add(amt)

		p.Unknown = append(p.Unknown, model.UnknownPosting{
			Date:        txnDate,
			Description: txnDesc,
			Amount:      amt,
			Currency:    currency,
			Account:     account,
			Running:     running,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseHeaderLine matches an unindented "YYYY-MM-DD description" line,
// tolerating a secondary date and a cleared/pending status mark.
func parseHeaderLine(line string) (time.Time, string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return time.Time{}, "", false
	}

	rest := line
	dateTok := rest
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		dateTok, rest = rest[:i], strings.TrimSpace(rest[i+1:])
	} else {
		rest = ""
	}
	if i := strings.IndexByte(dateTok, '='); i >= 0 {
		dateTok = dateTok[:i]
	}

	date, err := time.Parse(dateFormat, dateTok)
	if err != nil {
		return time.Time{}, "", false
	}

	// Strip status mark and transaction code.
	if rest == "*" || rest == "!" {
		rest = ""
	}
	rest = strings.TrimPrefix(rest, "* ")
	rest = strings.TrimPrefix(rest, "! ")
	return date, strings.TrimSpace(rest), true
}

// parsePostingLine matches an indented "account  amount" line. The
// account may contain single spaces; two or more spaces separate it
// from the amount.
func parsePostingLine(line string) (account, amount string, ok bool) {
	if line == "" || (line[0] != ' ' && line[0] != '\t') {
		return "", "", false
	}

	body := strings.TrimSpace(line)
	if body == "" || strings.HasPrefix(body, ";") {
		return "", "", false
	}

	if i := strings.Index(body, "  "); i >= 0 {
		account = strings.TrimSpace(body[:i])
		amount = strings.TrimSpace(body[i+2:])
	} else {
		account = body
	}

	// Drop balance assertions and inline comments from the amount.
	for _, sep := range []string{"=", ";"} {
		if i := strings.Index(amount, sep); i >= 0 {
			amount = strings.TrimSpace(amount[:i])
		}
	}
	return account, amount, true
}
