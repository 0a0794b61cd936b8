package harness

import "github.com/roach88/tapline/internal/capture"

// Row is a persisted event as rendered for comparison.
type Row struct {
	ID       int64
	Process  string
	Category string
	Line     string
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Stats is the pipeline snapshot after the last step.
	Stats capture.Stats `json:"stats"`

	// Rows are the persisted events in insertion order.
	Rows []Row `json:"rows"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Rows: []Row{}, Errors: []string{}}
}

// AddError records an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
