// Package detect fingerprints unclassified statement exports against the
// configured provider rule sets. Providers and their rules are tried in
// declared order and the first match wins; that ordering is contractual.
package detect

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/bankpipe-dev/bankpipe/internal/config"
)

// Result describes where a classified file belongs.
type Result struct {
	Provider string
	Currency string
	Rule     config.DetectionRule
	Metadata map[string]string
	// OutputName is the rename-template expansion, empty when the
	// matched rule has no template and the file keeps its name.
	OutputName string
}

var (
	whitespaceRunRe = regexp.MustCompile(`\s+`)
	placeholderRe   = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
)

// Detect matches a file against every provider rule set in declared
// order. Returns nil when no provider recognizes the file; that is not
// an error.
func Detect(filename string, data []byte, providers []config.Provider) (*Result, error) {
	for _, prov := range providers {
		for _, rule := range prov.Rules {
			if rule.FilenamePattern != "" {
				re, err := regexp.Compile(rule.FilenamePattern)
				if err != nil {
					return nil, fmt.Errorf("provider %s: filename pattern: %w", prov.Name, err)
				}
				if !re.MatchString(filename) {
					continue
				}
			}

			meta, header, firstData, err := readShape(data, rule)
			if err != nil {
				// The rule's dialect does not fit this file.
				continue
			}

			if signature(header) != rule.Header {
				continue
			}

			currency, ok := currencyOf(rule, prov, header, firstData)
			if !ok {
				continue
			}

			res := &Result{
				Provider: prov.Name,
				Currency: currency,
				Rule:     rule,
				Metadata: extractMetadata(rule, meta),
			}
			res.Metadata["provider"] = prov.Name
			res.Metadata["currency"] = currency
			if rule.RenameTemplate != "" {
				res.OutputName = expandTemplate(rule.RenameTemplate, res.Metadata)
			}
			return res, nil
		}
	}
	return nil, nil
}

// signature joins parsed header fields with commas. The comparison
// against the configured header is exact: a trailing delimiter that
// yields an empty trailing field must appear in the configuration as a
// trailing comma, it is never silently tolerated.
func signature(header []string) string {
	fields := make([]string, len(header))
	for i, f := range header {
		fields[i] = strings.TrimSpace(f)
	}
	return strings.Join(fields, ",")
}

// readShape parses just enough of the file for one rule: the skipped
// metadata rows, the header row, and the first data row.
func readShape(data []byte, rule config.DetectionRule) (meta [][]string, header, firstData []string, err error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter(rule)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	for i := 0; i < rule.SkipRows; i++ {
		row, err := r.Read()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading metadata row %d: %w", i, err)
		}
		meta = append(meta, row)
	}

	header, err = r.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading header row: %w", err)
	}

	firstData, err = r.Read()
	if errors.Is(err, io.EOF) {
		return meta, header, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading first data row: %w", err)
	}
	return meta, header, firstData, nil
}

// Rows parses every data row of a classified file under its matched
// rule, keyed by header column name. Used to enrich unknown-posting
// reports with the original source rows.
func Rows(data []byte, rule config.DetectionRule) ([]map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter(rule)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	if len(records) <= rule.SkipRows {
		return nil, nil
	}

	header := records[rule.SkipRows]
	var rows []map[string]string
	for _, rec := range records[rule.SkipRows+1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func delimiter(rule config.DetectionRule) rune {
	if rule.Delimiter == "" {
		return ','
	}
	return []rune(rule.Delimiter)[0]
}

func currencyOf(rule config.DetectionRule, prov config.Provider, header, firstData []string) (string, bool) {
	col := -1
	for i, f := range header {
		if strings.TrimSpace(f) == rule.CurrencyField {
			col = i
			break
		}
	}
	if col < 0 || col >= len(firstData) {
		return "", false
	}

	raw := strings.TrimSpace(firstData[col])
	if raw == "" {
		return "", false
	}
	if normalized, ok := prov.Currencies[raw]; ok {
		return normalized, true
	}
	return strings.ToLower(raw), true
}

func extractMetadata(rule config.DetectionRule, meta [][]string) map[string]string {
	out := make(map[string]string, len(rule.Extract)+2)
	for _, ex := range rule.Extract {
		if ex.Row >= len(meta) || ex.Column >= len(meta[ex.Row]) {
			continue
		}
		value := strings.TrimSpace(meta[ex.Row][ex.Column])
		if ex.Normalize == config.NormalizeSpacesToDashes {
			value = whitespaceRunRe.ReplaceAllString(value, "-")
		}
		out[ex.Field] = value
	}
	return out
}

func expandTemplate(template string, metadata map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(tok string) string {
		key := tok[1 : len(tok)-1]
		if v, ok := metadata[key]; ok {
			return v
		}
		return tok
	})
}
