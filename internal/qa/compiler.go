package qa

import (
	"github.com/machine-telemetry-qa-platform/internal/models"
)

// SectionVPNDetection is the dotted path of the VPN analysis sub-section.
// Collectors skip VPN analysis when IP metadata is unavailable, so queries
// about VPN posture must filter those snapshots out.
const SectionVPNDetection = "web_data.vpn_detection"

// QueryCompiler turns a classified intent and resolved window into the
// structured filter the snapshot store executes.
type QueryCompiler struct {
	limit int
	scope models.QueryScope
}

// NewQueryCompiler returns a compiler producing queries bounded by limit.
// A non-positive limit falls back to models.DefaultResultLimit. The scope,
// when non-empty, narrows every compiled query to one host/user.
func NewQueryCompiler(limit int, scope models.QueryScope) *QueryCompiler {
	if limit <= 0 {
		limit = models.DefaultResultLimit
	}
	return &QueryCompiler{limit: limit, scope: scope}
}

// Compile builds the store filter for one request. Every query carries the
// window range and most-recent-first ordering; intent-specific existence
// filters are added only where the intent structurally needs a sub-section.
func (c *QueryCompiler) Compile(intent models.Intent, window models.TimeWindow) models.CompiledQuery {
	q := models.CompiledQuery{
		Window:     window,
		Descending: true,
		Limit:      c.limit,
	}

	if intent.Category == models.IntentVPNStatus {
		q.RequireSections = append(q.RequireSections, SectionVPNDetection)
	}

	if !c.scope.IsZero() {
		q.Scope = c.scope
	}

	return q
}
