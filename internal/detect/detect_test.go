package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankpipe-dev/bankpipe/internal/config"
)

func testProvider(name string, rules ...config.DetectionRule) config.Provider {
	return config.Provider{
		Name:       name,
		Currencies: map[string]string{"CHF": "chf", "EUR": "eur"},
		Rules:      rules,
	}
}

func TestDetect_HeaderMatch(t *testing.T) {
	prov := testProvider("testbank", config.DetectionRule{
		Header:        "Date,Description,Amount,Currency",
		CurrencyField: "Currency",
	})
	data := []byte("Date,Description,Amount,Currency\n2025-01-03,COFFEE,-4.50,CHF\n")

	res, err := Detect("export.csv", data, []config.Provider{prov})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "testbank", res.Provider)
	assert.Equal(t, "chf", res.Currency)
	assert.Empty(t, res.OutputName)
}

func TestDetect_NoMatchIsNotAnError(t *testing.T) {
	prov := testProvider("testbank", config.DetectionRule{
		Header:        "Date,Description,Amount,Currency",
		CurrencyField: "Currency",
	})
	data := []byte("Completely,Different,Header\n1,2,3\n")

	res, err := Detect("export.csv", data, []config.Provider{prov})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestDetect_HeaderExactness(t *testing.T) {
	// A delimiter-terminated header row produces an empty trailing
	// field; only a configured header with the trailing comma matches.
	data := []byte("Date;Description;Amount;Currency;\n2025-01-03;COFFEE;-4.50;CHF;\n")

	without := testProvider("without", config.DetectionRule{
		Header:        "Date,Description,Amount,Currency",
		CurrencyField: "Currency",
		Delimiter:     ";",
	})
	res, err := Detect("export.csv", data, []config.Provider{without})
	require.NoError(t, err)
	assert.Nil(t, res, "header without trailing comma must not match")

	with := testProvider("with", config.DetectionRule{
		Header:        "Date,Description,Amount,Currency,",
		CurrencyField: "Currency",
		Delimiter:     ";",
	})
	res, err = Detect("export.csv", data, []config.Provider{with})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "with", res.Provider)
}

func TestDetect_DeclaredOrderWins(t *testing.T) {
	rule := config.DetectionRule{
		Header:        "Date,Description,Amount,Currency",
		CurrencyField: "Currency",
	}
	data := []byte("Date,Description,Amount,Currency\n2025-01-03,COFFEE,-4.50,CHF\n")

	first := testProvider("first", rule)
	second := testProvider("second", rule)

	res, err := Detect("export.csv", data, []config.Provider{first, second})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "first", res.Provider)

	// Reordering the configuration changes the outcome.
	res, err = Detect("export.csv", data, []config.Provider{second, first})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "second", res.Provider)
}

func TestDetect_FilenamePattern(t *testing.T) {
	prov := testProvider("testbank", config.DetectionRule{
		FilenamePattern: `^export-`,
		Header:          "Date,Description,Amount,Currency",
		CurrencyField:   "Currency",
	})
	data := []byte("Date,Description,Amount,Currency\n2025-01-03,COFFEE,-4.50,CHF\n")

	res, err := Detect("statement.csv", data, []config.Provider{prov})
	require.NoError(t, err)
	assert.Nil(t, res, "filename pattern must gate the rule")

	res, err = Detect("export-2025.csv", data, []config.Provider{prov})
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestDetect_CurrencyFallbackLowercase(t *testing.T) {
	prov := testProvider("testbank", config.DetectionRule{
		Header:        "Date,Description,Amount,Currency",
		CurrencyField: "Currency",
	})
	data := []byte("Date,Description,Amount,Currency\n2025-01-03,COFFEE,-4.50,USD\n")

	res, err := Detect("export.csv", data, []config.Provider{prov})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "usd", res.Currency, "unmapped currency falls back to lowercase")
}

func TestDetect_MetadataAndRename(t *testing.T) {
	prov := testProvider("testbank", config.DetectionRule{
		Header:         "Date,Description,Amount,Currency",
		CurrencyField:  "Currency",
		SkipRows:       2,
		Delimiter:      ";",
		RenameTemplate: "transactions-{provider}-{accountid}.csv",
		Extract: []config.MetadataExtraction{
			{Field: "accountid", Row: 0, Column: 1, Normalize: config.NormalizeSpacesToDashes},
			{Field: "closing_balance", Row: 1, Column: 1},
		},
	})
	data := []byte("Account;1234 56789.0\n" +
		"Closing balance;CHF 250.00\n" +
		"Date;Description;Amount;Currency\n" +
		"2025-01-03;COFFEE;-4.50;CHF\n")

	res, err := Detect("export.csv", data, []config.Provider{prov})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "1234-56789.0", res.Metadata["accountid"])
	assert.Equal(t, "CHF 250.00", res.Metadata["closing_balance"])
	assert.Equal(t, "transactions-testbank-1234-56789.0.csv", res.OutputName)
}

func TestDetect_RuleOrderWithinProvider(t *testing.T) {
	loose := config.DetectionRule{
		Header:        "Date,Description,Amount,Currency",
		CurrencyField: "Currency",
	}
	renaming := loose
	renaming.RenameTemplate = "renamed-{currency}.csv"

	prov := testProvider("testbank", renaming, loose)
	data := []byte("Date,Description,Amount,Currency\n2025-01-03,COFFEE,-4.50,CHF\n")

	res, err := Detect("export.csv", data, []config.Provider{prov})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "renamed-chf.csv", res.OutputName)
}

func TestDetect_NoDataRow(t *testing.T) {
	prov := testProvider("testbank", config.DetectionRule{
		Header:        "Date,Description,Amount,Currency",
		CurrencyField: "Currency",
	})
	data := []byte("Date,Description,Amount,Currency\n")

	res, err := Detect("export.csv", data, []config.Provider{prov})
	require.NoError(t, err)
	assert.Nil(t, res, "a file without a data row has no currency to read")
}

func TestRows(t *testing.T) {
	rule := config.DetectionRule{
		Header:        "Date,Description,Amount,Currency",
		CurrencyField: "Currency",
		SkipRows:      1,
		Delimiter:     ";",
	}
	data := []byte("Account;777\n" +
		"Date;Description;Amount;Currency\n" +
		"2025-01-03;COFFEE;-4.50;CHF\n" +
		"2025-01-04;BOOKS;-20.00;CHF\n")

	rows, err := Rows(data, rule)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "COFFEE", rows[0]["Description"])
	assert.Equal(t, "-20.00", rows[1]["Amount"])
}
