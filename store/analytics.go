package store

// AnalyticsSummary is a point-in-time aggregation over inspections and
// deficiencies. It is recomputed on demand, never cached.
type AnalyticsSummary struct {
	TotalInspections       int              `json:"total_inspections"`
	CompletedInspections   int              `json:"completed_inspections"`
	OpenDeficiencies       int              `json:"open_deficiencies"`
	ResolvedDeficiencies   int              `json:"resolved_deficiencies"`
	AverageResolutionTime  float64          `json:"average_resolution_time"`
	DeficienciesBySeverity map[Severity]int `json:"deficiencies_by_severity"`
	LocationHeatmap        map[string]int   `json:"location_heatmap"`
}

// AnalyticsView derives read-only aggregates from the inspection
// store.
type AnalyticsView struct {
	inspections *InspectionStore
}

func NewAnalyticsView(inspections *InspectionStore) *AnalyticsView {
	return &AnalyticsView{inspections: inspections}
}

// Summary computes the dashboard aggregates. Average resolution time
// is in hours over resolved deficiencies, zero when none are resolved.
func (v *AnalyticsView) Summary() AnalyticsSummary {
	summary := AnalyticsSummary{
		DeficienciesBySeverity: map[Severity]int{},
		LocationHeatmap:        map[string]int{},
	}

	for _, inspection := range v.inspections.Inspections() {
		summary.TotalInspections++
		if inspection.Status == StatusCompleted {
			summary.CompletedInspections++
		}
	}

	var totalResolutionHours float64
	for _, deficiency := range v.inspections.Deficiencies() {
		summary.DeficienciesBySeverity[deficiency.Severity]++
		summary.LocationHeatmap[deficiency.Location]++
		if deficiency.Status == StatusResolved {
			summary.ResolvedDeficiencies++
			if deficiency.ResolvedAt != nil {
				totalResolutionHours += deficiency.ResolvedAt.Sub(deficiency.CreatedAt).Hours()
			}
		} else {
			summary.OpenDeficiencies++
		}
	}

	if summary.ResolvedDeficiencies > 0 {
		summary.AverageResolutionTime = totalResolutionHours / float64(summary.ResolvedDeficiencies)
	}

	return summary
}
