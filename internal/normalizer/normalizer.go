// Package normalizer turns heterogeneous archive exports into canonical
// ledger rows. Normalizers never mutate rows that already exist; re-running
// an import over the same export is a no-op.
package normalizer

// Outcome classifies what happened to a single export record.
type Outcome int

const (
	// OutcomeInserted means the record produced a new ledger row.
	OutcomeInserted Outcome = iota
	// OutcomeSkipped means an acceptance rule dropped the record.
	OutcomeSkipped
	// OutcomeAlreadyImported means the ledger already holds the record.
	OutcomeAlreadyImported
)

// Result reports aggregate counts of one normalizer run. Counts cover
// accepted records read from the export, not rows inserted, so a re-run over
// the same export reports the same numbers.
type Result struct {
	Posts int
	Media int
}
