package qa

import (
	"testing"
	"time"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

func testWindow() models.TimeWindow {
	return models.TimeWindow{
		Start:       testNow.Add(-2 * time.Hour),
		End:         testNow,
		MatchedRule: "relative_duration",
	}
}

func TestCompileAlwaysCarriesWindowAndOrdering(t *testing.T) {
	c := NewQueryCompiler(0, models.QueryScope{})

	for _, category := range []models.IntentCategory{
		models.IntentVPNStatus, models.IntentSpeedInfo, models.IntentSystemInfo,
		models.IntentLocationInfo, models.IntentDeviceListing, models.IntentTimeAnalysis,
		models.IntentDataCoverage, models.IntentGeneralStatus,
	} {
		q := c.Compile(models.Intent{Category: category}, testWindow())
		if !q.Window.Start.Equal(testWindow().Start) || !q.Window.End.Equal(testWindow().End) {
			t.Errorf("%s: window not carried through", category)
		}
		if !q.Descending {
			t.Errorf("%s: query must order most-recent-first", category)
		}
		if q.Limit != models.DefaultResultLimit {
			t.Errorf("%s: limit = %d, want default %d", category, q.Limit, models.DefaultResultLimit)
		}
	}
}

func TestCompileVPNStatusRequiresDetectionSection(t *testing.T) {
	c := NewQueryCompiler(0, models.QueryScope{})

	q := c.Compile(models.Intent{Category: models.IntentVPNStatus}, testWindow())
	if len(q.RequireSections) != 1 || q.RequireSections[0] != SectionVPNDetection {
		t.Fatalf("require sections = %v, want [%s]", q.RequireSections, SectionVPNDetection)
	}
}

func TestCompileOtherIntentsAddNoExistenceFilter(t *testing.T) {
	c := NewQueryCompiler(0, models.QueryScope{})

	for _, category := range []models.IntentCategory{
		models.IntentSpeedInfo, models.IntentSystemInfo, models.IntentGeneralStatus,
	} {
		q := c.Compile(models.Intent{Category: category}, testWindow())
		if len(q.RequireSections) != 0 {
			t.Errorf("%s: require sections = %v, want none", category, q.RequireSections)
		}
	}
}

func TestCompileScopeOnlyWhenConfigured(t *testing.T) {
	unscoped := NewQueryCompiler(0, models.QueryScope{})
	q := unscoped.Compile(models.Intent{Category: models.IntentSystemInfo}, testWindow())
	if !q.Scope.IsZero() {
		t.Errorf("scope = %+v, want empty when not configured", q.Scope)
	}

	scoped := NewQueryCompiler(0, models.QueryScope{Hostname: "office-pc", Username: "alice"})
	q = scoped.Compile(models.Intent{Category: models.IntentSystemInfo}, testWindow())
	if q.Scope.Hostname != "office-pc" || q.Scope.Username != "alice" {
		t.Errorf("scope = %+v, want configured host/user", q.Scope)
	}
}

func TestCompileCustomLimit(t *testing.T) {
	c := NewQueryCompiler(25, models.QueryScope{})
	q := c.Compile(models.Intent{Category: models.IntentTimeAnalysis}, testWindow())
	if q.Limit != 25 {
		t.Errorf("limit = %d, want 25", q.Limit)
	}
}
