package models

// CheckResult is the outcome of one media check.
type CheckResult struct {
	RunID      string   `json:"run_id"`
	Missing    []string `json:"missing"`
	Unused     []string `json:"unused"`
	Warnings   []string `json:"warnings"`
	ErrorNotes int      `json:"error_notes"`
	Passes     int      `json:"passes"`
	Renamed    int      `json:"renamed"`
}
