package pipeline

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bankpipe-dev/bankpipe/internal/balance"
	"github.com/bankpipe-dev/bankpipe/internal/detect"
	"github.com/bankpipe-dev/bankpipe/internal/journal"
	"github.com/bankpipe-dev/bankpipe/internal/ledger"
	"github.com/bankpipe-dev/bankpipe/internal/model"
	"github.com/bankpipe-dev/bankpipe/internal/rules"
	"github.com/bankpipe-dev/bankpipe/internal/workspace"
)

// createWorkspace allocates the isolated worktree and stages incoming
// files from the origin's import directory into it. Returns whether a
// workspace exists (and therefore needs cleanup).
func (r *Runner) createWorkspace(res *model.PipelineResult, st *runState) bool {
	ws, err := workspace.Create(r.git, r.origin)
	if err != nil {
		r.fail(res, model.StepCreateWorkspace, err,
			"the ledger repository must be a git repository with at least one commit", nil)
		return false
	}
	st.ws = ws

	staged, err := r.stageIncoming(ws)
	if err != nil {
		r.fail(res, model.StepCreateWorkspace, err,
			"check permissions on the import directory", nil)
		return true
	}
	st.staged = staged

	r.ok(res, model.StepCreateWorkspace,
		fmt.Sprintf("workspace %s on branch %s", ws.ID, ws.Branch),
		map[string]string{"path": ws.Path, "staged": fmt.Sprint(len(staged))})
	return true
}

// stageIncoming copies files dropped into the origin's import directory
// into the worktree, where every subsequent move is staged until merge.
func (r *Runner) stageIncoming(ws *workspace.Context) ([]string, error) {
	srcDir := filepath.Join(r.origin, r.cfg.Paths.Import)
	entries, err := os.ReadDir(srcDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	dstDir := filepath.Join(ws.Path, r.cfg.Paths.Import)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace import dir: %w", err)
	}

	var staged []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dst := filepath.Join(dstDir, e.Name())
		if _, err := os.Stat(dst); err == nil {
			continue // already tracked in the repository
		}
		if err := copyFile(filepath.Join(srcDir, e.Name()), dst); err != nil {
			return nil, fmt.Errorf("staging %s: %w", e.Name(), err)
		}
		staged = append(staged, e.Name())
	}
	return staged, nil
}

// classify routes every file in the workspace import directory to
// pending/<provider>/<currency>/ or to unrecognized/. The batch is
// all-or-nothing with respect to collisions: if any planned destination
// already exists, zero files are moved and the collisions are reported.
// Failure here is non-fatal; the pipeline continues with whatever is
// already under pending.
func (r *Runner) classify(res *model.PipelineResult, st *runState) {
	ws := st.ws
	importDir := filepath.Join(ws.Path, r.cfg.Paths.Import)

	entries, err := os.ReadDir(importDir)
	if errors.Is(err, fs.ErrNotExist) {
		r.ok(res, model.StepClassify, "no files to classify", nil)
		return
	}
	if err != nil {
		r.step(res, model.StepClassify, model.StepFailed, err.Error(), nil)
		return
	}

	type plan struct {
		src, dst string
		det      *detect.Result
	}
	var plans []plan
	recognized, unrecognized := 0, 0

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		src := filepath.Join(importDir, e.Name())
		data, err := os.ReadFile(src)
		if err != nil {
			r.step(res, model.StepClassify, model.StepFailed,
				fmt.Sprintf("reading %s: %v", e.Name(), err), nil)
			return
		}

		det, err := detect.Detect(e.Name(), data, r.cfg.Providers)
		if err != nil {
			r.step(res, model.StepClassify, model.StepFailed, err.Error(), nil)
			return
		}

		if det == nil {
			plans = append(plans, plan{
				src: src,
				dst: filepath.Join(ws.Path, r.cfg.Paths.Unrecognized, e.Name()),
			})
			unrecognized++
			continue
		}

		name := e.Name()
		if det.OutputName != "" {
			name = det.OutputName
		}
		plans = append(plans, plan{
			src: src,
			dst: filepath.Join(ws.Path, r.cfg.Paths.Pending, det.Provider, det.Currency, name),
			det: det,
		})
		recognized++
	}

	// Collision check before any move.
	var collisions []string
	seen := make(map[string]bool)
	for _, p := range plans {
		if seen[p.dst] {
			collisions = append(collisions, filepath.Base(p.dst))
			continue
		}
		seen[p.dst] = true
		if _, err := os.Stat(p.dst); err == nil {
			collisions = append(collisions, filepath.Base(p.dst))
		}
	}
	if len(collisions) > 0 {
		sort.Strings(collisions)
		r.step(res, model.StepClassify, model.StepFailed,
			"destination collisions, no files moved",
			map[string]string{"collisions": strings.Join(collisions, ", ")})
		return
	}

	for _, p := range plans {
		if err := os.MkdirAll(filepath.Dir(p.dst), 0o755); err != nil {
			r.step(res, model.StepClassify, model.StepFailed, err.Error(), nil)
			return
		}
		if err := os.Rename(p.src, p.dst); err != nil {
			r.step(res, model.StepClassify, model.StepFailed, err.Error(), nil)
			return
		}
		if p.det != nil {
			st.detections[p.dst] = p.det
		}
	}

	r.ok(res, model.StepClassify,
		fmt.Sprintf("%d classified, %d unrecognized", recognized, unrecognized),
		map[string]string{
			"recognized":   fmt.Sprint(recognized),
			"unrecognized": fmt.Sprint(unrecognized),
		})
}

// declareAccounts matches pending files to their rules files and makes
// sure every referenced account has a standing declaration before the
// strict check runs.
func (r *Runner) declareAccounts(res *model.PipelineResult, st *runState) bool {
	ws := st.ws

	mapping, err := rules.BuildMapping(filepath.Join(ws.Path, r.cfg.Paths.Rules))
	if err != nil {
		r.fail(res, model.StepDeclareAccounts, err,
			"check the rules directory configured under paths.rules", nil)
		return false
	}

	pending, err := listFiles(filepath.Join(ws.Path, r.cfg.Paths.Pending))
	if err != nil {
		r.fail(res, model.StepDeclareAccounts, err, "", nil)
		return false
	}

	accountSet := make(map[string]bool)
	for _, path := range pending {
		rulesFile, ok := rules.Match(path, mapping)
		if !ok {
			st.missing = append(st.missing, path)
			continue
		}
		st.files = append(st.files, matchedFile{path: path, rulesFile: rulesFile})

		accts, err := rules.Accounts(rulesFile)
		if err != nil {
			r.fail(res, model.StepDeclareAccounts, err, "", nil)
			return false
		}
		for _, a := range accts {
			accountSet[a] = true
		}
	}

	accounts := make([]string, 0, len(accountSet))
	for a := range accountSet {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)

	journalPath := filepath.Join(ws.Path, r.cfg.Paths.Journal)
	if _, err := journal.EnsureYearInclude(journalPath, r.cfg.Paths.Ledger, r.now().Year()); err != nil {
		r.fail(res, model.StepDeclareAccounts, err, "", nil)
		return false
	}
	added, err := journal.EnsureDeclarations(journalPath, accounts)
	if err != nil {
		r.fail(res, model.StepDeclareAccounts, err, "", nil)
		return false
	}

	msg := fmt.Sprintf("%d files matched, %d declarations added", len(st.files), len(added))
	details := map[string]string{"declared": strings.Join(added, ", ")}
	if len(st.missing) > 0 {
		names := make([]string, len(st.missing))
		for i, p := range st.missing {
			names[i] = filepath.Base(p)
		}
		details["unmatched"] = strings.Join(names, ", ")
		msg += fmt.Sprintf(", %d files without rules", len(st.missing))
	}
	r.ok(res, model.StepDeclareAccounts, msg, details)
	return true
}

// dryRun previews every matched file and fails before import when the
// engine routed anything to a sentinel unknown account. Returns
// (proceed, ok): proceed=false with ok=true short-circuits the run to
// success because there is nothing to import.
func (r *Runner) dryRun(res *model.PipelineResult, st *runState) (bool, bool) {
	ws := st.ws
	st.preview = &ledger.Preview{}

	for _, f := range st.files {
		out, err := r.ledger.Print(ws.Path, f.rulesFile)
		if err != nil {
			r.fail(res, model.StepDryRun, err,
				"the ledger engine rejected "+filepath.Base(f.rulesFile), nil)
			return false, false
		}
		preview, err := ledger.ParsePreview(out)
		if err != nil {
			r.fail(res, model.StepDryRun, err, "", nil)
			return false, false
		}
		r.enrichUnknown(st, f, preview.Unknown)
		st.preview.Merge(preview)
	}

	if n := len(st.preview.Unknown); n > 0 {
		details := make(map[string]string, n)
		for i, p := range st.preview.Unknown {
			line := fmt.Sprintf("%s %s %s %s (running %s)",
				p.Date.Format("2006-01-02"), p.Description,
				p.Amount.StringFixed(2), p.Account, p.Running.StringFixed(2))
			if len(p.Source) > 0 {
				line += " source: " + formatRow(p.Source)
			}
			details[fmt.Sprintf("unknown[%d]", i)] = line
		}
		r.fail(res, model.StepDryRun,
			fmt.Errorf("%d postings routed to unknown accounts", n),
			"add categorization rules for these transactions and re-run", details)
		return false, false
	}

	if st.preview.Transactions == 0 {
		r.ok(res, model.StepDryRun, "no transactions detected", nil)
		return false, true
	}

	r.ok(res, model.StepDryRun,
		fmt.Sprintf("%d transactions from %d files", st.preview.Transactions, len(st.files)),
		map[string]string{
			"from": st.preview.First.Format("2006-01-02"),
			"to":   st.preview.Last.Format("2006-01-02"),
		})
	return true, true
}

// enrichUnknown attaches the original source row to unknown postings
// when it can be recovered. Strictly best-effort: any failure drops the
// extra context, never the run.
func (r *Runner) enrichUnknown(st *runState, f matchedFile, postings []model.UnknownPosting) {
	det, ok := st.detections[f.path]
	if !ok || len(postings) == 0 {
		return
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return
	}
	rows, err := st.cache.Rows(data, det.Rule)
	if err != nil {
		return
	}

	for i := range postings {
		for _, row := range rows {
			for _, v := range row {
				if v != "" && v == postings[i].Description {
					postings[i].Source = row
					break
				}
			}
			if postings[i].Source != nil {
				break
			}
		}
	}
}

// importFiles commits the matched files into the journal, runs the
// strict consistency check, and moves imported files from pending to
// done inside the worktree. Nothing is published until merge.
func (r *Runner) importFiles(res *model.PipelineResult, st *runState) bool {
	ws := st.ws

	if len(st.missing) > 0 {
		names := make([]string, len(st.missing))
		for i, p := range st.missing {
			names[i] = filepath.Base(p)
		}
		r.fail(res, model.StepImport,
			fmt.Errorf("%d pending files have no rules file", len(st.missing)),
			"author a rules file with a matching source directive for each",
			map[string]string{"unmatched": strings.Join(names, ", ")})
		return false
	}

	journalPath := filepath.Join(ws.Path, r.cfg.Paths.Journal)
	for year := st.preview.First.Year(); year <= st.preview.Last.Year(); year++ {
		if _, err := journal.EnsureYearInclude(journalPath, r.cfg.Paths.Ledger, year); err != nil {
			r.fail(res, model.StepImport, err, "", nil)
			return false
		}
	}

	for _, f := range st.files {
		if err := r.ledger.Import(ws.Path, journalPath, f.rulesFile); err != nil {
			r.fail(res, model.StepImport, err,
				"fix the rules file or source data and re-run; nothing was merged", nil)
			return false
		}
	}

	if err := r.ledger.CheckStrict(ws.Path, journalPath); err != nil {
		// Files stay under pending so the failure is visibly
		// recoverable on the next run.
		r.fail(res, model.StepImport, err,
			"strict consistency check failed after import; imported files were not moved to done", nil)
		return false
	}

	pendingDir := filepath.Join(ws.Path, r.cfg.Paths.Pending)
	doneDir := filepath.Join(ws.Path, r.cfg.Paths.Done)
	for _, f := range st.files {
		rel, err := filepath.Rel(pendingDir, f.path)
		if err != nil {
			r.fail(res, model.StepImport, err, "", nil)
			return false
		}
		dst := filepath.Join(doneDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			r.fail(res, model.StepImport, err, "", nil)
			return false
		}
		if err := os.Rename(f.path, dst); err != nil {
			r.fail(res, model.StepImport, err, "", nil)
			return false
		}
	}

	hash, err := r.git.CommitAll(ws.Path, "import "+res.RunID,
		r.cfg.Git.AuthorName, r.cfg.Git.AuthorEmail)
	if err != nil {
		r.fail(res, model.StepImport, err, "", nil)
		return false
	}

	r.ok(res, model.StepImport,
		fmt.Sprintf("%d files imported", len(st.files)),
		map[string]string{"commit": hash})
	return true
}

// reconcile proves the import: for every statement that declared a
// closing balance, the engine's balance for the statement account as of
// the day after its last transaction must match it.
func (r *Runner) reconcile(res *model.PipelineResult, st *runState) bool {
	ws := st.ws
	journalPath := filepath.Join(ws.Path, r.cfg.Paths.Journal)

	details := make(map[string]string)
	checked := 0
	for _, f := range st.files {
		det, ok := st.detections[f.path]
		if !ok {
			continue
		}
		claimed, ok := det.Metadata["closing_balance"]
		if !ok || claimed == "" {
			continue
		}

		account, err := rules.Account1(f.rulesFile)
		if err != nil || account == "" {
			r.fail(res, model.StepReconcile,
				fmt.Errorf("no account1 directive in %s", filepath.Base(f.rulesFile)),
				"the rules file must declare the statement account", nil)
			return false
		}

		expected, err := balance.Parse(claimed)
		if err != nil {
			r.fail(res, model.StepReconcile,
				fmt.Errorf("statement closing balance: %w", err), "", nil)
			return false
		}

		lastDate, err := r.ledger.LastTransactionDate(ws.Path, account, journalPath)
		if err != nil {
			r.fail(res, model.StepReconcile, err, "", nil)
			return false
		}
		if lastDate.IsZero() {
			r.fail(res, model.StepReconcile,
				fmt.Errorf("no transactions found for %s after import", account), "", nil)
			return false
		}

		actual, err := r.ledger.BalanceAsOf(ws.Path, account, journalPath, lastDate.AddDate(0, 0, 1))
		if err != nil {
			r.fail(res, model.StepReconcile, err, "", nil)
			return false
		}

		match, err := balance.Match(expected, actual)
		if err != nil {
			r.fail(res, model.StepReconcile, err,
				"statement and ledger disagree on the currency; nothing was merged", nil)
			return false
		}
		if !match {
			diff, _ := balance.Diff(expected, actual)
			r.fail(res, model.StepReconcile,
				fmt.Errorf("balance mismatch for %s: expected %s, actual %s, difference %s",
					account, expected, actual, diff),
				"the import does not add up to the statement's closing balance; nothing was merged",
				map[string]string{"difference": diff})
			return false
		}

		checked++
		details[account] = fmt.Sprintf("%s as of %s", actual, lastDate.Format("2006-01-02"))
	}

	if checked == 0 {
		r.skip(res, model.StepReconcile, "no statement balances to verify")
		return true
	}
	r.ok(res, model.StepReconcile,
		fmt.Sprintf("%d balances verified", checked), details)
	return true
}

// merge publishes the workspace branch into the origin with a single
// non-fast-forward merge commit per import batch.
func (r *Runner) merge(res *model.PipelineResult, st *runState) {
	msg := r.mergeMessage(st)
	if err := r.git.MergeNoFF(r.origin, st.ws.Branch, msg,
		r.cfg.Git.AuthorName, r.cfg.Git.AuthorEmail); err != nil {
		r.fail(res, model.StepMerge, err,
			"resolve the origin repository state and re-run; the import was rolled back", nil)
		return
	}

	// Drop the staged originals whose classified copies were merged.
	importDir := filepath.Join(st.ws.Path, r.cfg.Paths.Import)
	for _, name := range st.staged {
		if _, err := os.Stat(filepath.Join(importDir, name)); errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(filepath.Join(r.origin, r.cfg.Paths.Import, name))
		}
	}

	res.Summary = msg
	r.ok(res, model.StepMerge, msg, nil)
}

func (r *Runner) mergeMessage(st *runState) string {
	provSet := make(map[string]bool)
	curSet := make(map[string]bool)
	for _, det := range st.detections {
		provSet[det.Provider] = true
		curSet[det.Currency] = true
	}
	providers := sortedKeys(provSet)
	currencies := sortedKeys(curSet)

	source := "statements"
	if len(providers) > 0 {
		source = strings.Join(providers, "+")
	}
	if len(currencies) > 0 {
		source += " " + strings.Join(currencies, "+")
	}

	return fmt.Sprintf("import: %s %s..%s (%d transactions)",
		source,
		st.preview.First.Format("2006-01-02"),
		st.preview.Last.Format("2006-01-02"),
		st.preview.Transactions)
}

// cleanup removes the workspace and its branch. It runs on every exit
// path and its own failure is reported but never escalated.
func (r *Runner) cleanup(res *model.PipelineResult, st *runState) {
	if st.ws == nil {
		return
	}
	if err := st.ws.Remove(); err != nil {
		r.step(res, model.StepCleanup, model.StepFailed, err.Error(), nil)
		return
	}
	r.ok(res, model.StepCleanup, "workspace removed", nil)
}

// --- helpers ---

func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// formatRow renders a source CSV row as "col=value" pairs in column
// name order.
func formatRow(row map[string]string) string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		if row[c] == "" {
			continue
		}
		parts = append(parts, c+"="+row[c])
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
