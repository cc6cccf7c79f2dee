package model

// ScanMatch is one result row emitted by a streaming scan. Immutable once
// received.
type ScanMatch struct {
	SubjectCode string
	SubjectName string
	BaseDate    string
	SignalDate  string
	Details     map[string]interface{}
}

// ScanProgress is the running completion counter of a scan.
type ScanProgress struct {
	Current int
	Total   int
}

// Pattern describes one scan formula offered by the backend.
type Pattern struct {
	Name        string
	DisplayName string
	Description string
	Category    string
}
