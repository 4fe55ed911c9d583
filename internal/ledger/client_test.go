package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankpipe-dev/bankpipe/internal/cmdexec"
)

// scriptedExec records the argument vector and replays a canned result.
func scriptedExec(t *testing.T, wantArgs []string, res cmdexec.Result) cmdexec.Executor {
	t.Helper()
	return cmdexec.Func(func(dir, name string, args ...string) (cmdexec.Result, error) {
		assert.Equal(t, DefaultBinary, name)
		assert.Equal(t, wantArgs, args)
		return res, nil
	})
}

func TestPrint(t *testing.T) {
	c := NewClient(scriptedExec(t,
		[]string{"print", "-f", "pending/zkb/chf/march.csv.rules"},
		cmdexec.Result{Stdout: "2024-03-01 X\n"}))

	out, err := c.Print("/repo", "pending/zkb/chf/march.csv.rules")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 X\n", out)
}

func TestImport(t *testing.T) {
	c := NewClient(scriptedExec(t,
		[]string{"import", "-f", "all.journal", "pending/zkb/chf/march.csv.rules"},
		cmdexec.Result{}))

	require.NoError(t, c.Import("/repo", "all.journal", "pending/zkb/chf/march.csv.rules"))
}

func TestImport_NonZeroExit(t *testing.T) {
	c := NewClient(cmdexec.Func(func(dir, name string, args ...string) (cmdexec.Result, error) {
		return cmdexec.Result{Stderr: "could not parse", ExitCode: 1}, nil
	}))

	err := c.Import("/repo", "all.journal", "bad.rules")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not parse")
}

func TestImport_ExecError(t *testing.T) {
	c := NewClient(cmdexec.Func(func(dir, name string, args ...string) (cmdexec.Result, error) {
		return cmdexec.Result{}, errors.New("executable not found")
	}))

	err := c.Import("/repo", "all.journal", "x.rules")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable not found")
}

func TestCheckStrict(t *testing.T) {
	c := NewClient(scriptedExec(t,
		[]string{"check", "--strict", "-f", "all.journal"},
		cmdexec.Result{}))

	require.NoError(t, c.CheckStrict("/repo", "all.journal"))
}

func TestLastTransactionDate(t *testing.T) {
	out := `"txnidx","date","code","description","account","amount","total"
"1","2024-01-15","","Groceries","assets:bank:checking","CHF -23.50","CHF -23.50"
"2","2024-02-28","","Salary","assets:bank:checking","CHF 5200.00","CHF 5176.50"
`
	c := NewClient(scriptedExec(t,
		[]string{"register", "assets:bank:checking", "-f", "all.journal", "-O", "csv"},
		cmdexec.Result{Stdout: out}))

	got, err := c.LastTransactionDate("/repo", "assets:bank:checking", "all.journal")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-28", got.Format(dateFormat))
}

func TestLastTransactionDate_EmptyRegister(t *testing.T) {
	c := NewClient(cmdexec.Func(func(dir, name string, args ...string) (cmdexec.Result, error) {
		return cmdexec.Result{Stdout: `"txnidx","date","code","description","account","amount","total"` + "\n"}, nil
	}))

	got, err := c.LastTransactionDate("/repo", "assets:bank", "all.journal")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestBalanceAsOf(t *testing.T) {
	c := NewClient(scriptedExec(t,
		[]string{"bal", "assets:bank:checking", "-f", "all.journal", "-e", "2024-03-01", "-N", "--flat"},
		cmdexec.Result{Stdout: "         CHF 5176.50  assets:bank:checking\n"}))

	b, err := c.BalanceAsOf("/repo", "assets:bank:checking", "all.journal",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "CHF", b.Currency)
	assert.Equal(t, "5176.5", b.Amount.String())
}

func TestBalanceAsOf_NoPostings(t *testing.T) {
	c := NewClient(cmdexec.Func(func(dir, name string, args ...string) (cmdexec.Result, error) {
		return cmdexec.Result{Stdout: "\n"}, nil
	}))

	b, err := c.BalanceAsOf("/repo", "assets:bank", "all.journal", time.Now())
	require.NoError(t, err)
	assert.True(t, b.Amount.IsZero())
	assert.Empty(t, b.Currency)
}
