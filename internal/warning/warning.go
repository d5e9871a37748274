// Package warning carries non-fatal failures out of partial-success operations.
//
// Secondary writes (extra contact rows, per-account calendar projections) are
// allowed to fail without aborting the primary operation; callers and tests
// inspect the accumulated warnings instead of scraping logs.
package warning

import "fmt"

// Warning describes one skipped or failed secondary step.
type Warning struct {
	Op      string `json:"op"`
	Subject string `json:"subject"`
	Reason  string `json:"reason"`
}

// New builds a warning from an operation, its subject, and the causing error.
func New(op, subject string, err error) Warning {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return Warning{Op: op, Subject: subject, Reason: reason}
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Op, w.Subject, w.Reason)
}
