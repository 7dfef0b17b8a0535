package models

import (
	"fmt"
	"time"
)

// TimeWindow is the resolved interval a question refers to.
// Invariant: Start <= End. Built once per request and never mutated.
type TimeWindow struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	MatchedRule string    `json:"matched_rule"`
}

// Validate checks the window ordering invariant.
func (w TimeWindow) Validate() error {
	if w.End.Before(w.Start) {
		return fmt.Errorf("time window end %s precedes start %s", w.End, w.Start)
	}
	return nil
}

// IntentCategory is the closed set of recognized question purposes.
type IntentCategory string

const (
	IntentVPNStatus     IntentCategory = "vpn_status"
	IntentSpeedInfo     IntentCategory = "speed_info"
	IntentSystemInfo    IntentCategory = "system_info"
	IntentLocationInfo  IntentCategory = "location_info"
	IntentDeviceListing IntentCategory = "device_listing"
	IntentTimeAnalysis  IntentCategory = "time_analysis"
	IntentDataCoverage  IntentCategory = "data_coverage"
	IntentGeneralStatus IntentCategory = "general_status"
)

// Intent is the classified purpose of a question.
type Intent struct {
	Category    IntentCategory `json:"category"`
	Confidence  float64        `json:"confidence"`
	MatchedRule string         `json:"matched_rule"`
}

// QueryScope optionally narrows a search to one machine or account.
// Empty fields mean "no scope filter"; filtering on absent identifiers
// would silently drop every record.
type QueryScope struct {
	Hostname string `json:"hostname,omitempty"`
	Username string `json:"username,omitempty"`
}

// IsZero reports whether the scope applies no narrowing at all.
func (s QueryScope) IsZero() bool {
	return s.Hostname == "" && s.Username == ""
}

// DefaultResultLimit bounds how many snapshots a compiled query returns.
// Ten is enough history for the multi-record intents (device listing,
// time analysis, coverage) while keeping formatting cost flat.
const DefaultResultLimit = 10

// CompiledQuery is the structured filter handed to the snapshot store.
type CompiledQuery struct {
	// Window filters on the snapshot collection timestamp
	Window TimeWindow `json:"window"`

	// RequireSections lists JSON sub-sections that must exist on a matching
	// snapshot, as dotted paths (e.g. "web_data.vpn_detection"). Order is
	// preserved but has no semantic weight.
	RequireSections []string `json:"require_sections,omitempty"`

	// Scope narrows to a single host/user when set
	Scope QueryScope `json:"scope,omitempty"`

	// Descending orders results most-recent-first; the compiler always sets it
	Descending bool `json:"descending"`

	// Limit bounds the result set size
	Limit int `json:"limit"`
}

// Answer is the terminal product of one Process call.
type Answer struct {
	ID             string     `json:"answer_id"`
	Query          string     `json:"query"`
	Intent         Intent     `json:"intent"`
	TimeWindow     TimeWindow `json:"time_window"`
	RecordCount    int        `json:"record_count"`
	StructuredText string     `json:"structured_text"`
	NaturalText    string     `json:"natural_text"`
	Timestamp      time.Time  `json:"timestamp"`
}
