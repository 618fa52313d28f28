package models

import (
	"context"

	"bitbucket.org/sitefocus/qctrack_backend/config"
)

type AnalyticsSummary struct {
	TotalInspections       int            `json:"total_inspections"`
	CompletedInspections   int            `json:"completed_inspections"`
	OpenDeficiencies       int            `json:"open_deficiencies"`
	ResolvedDeficiencies   int            `json:"resolved_deficiencies"`
	AverageResolutionTime  float64        `json:"average_resolution_time"`
	DeficienciesBySeverity map[string]int `json:"deficiencies_by_severity"`
	LocationHeatmap        map[string]int `json:"location_heatmap"`
}

type countRow struct {
	Key   string
	Count int
}

// GetAnalyticsSummary computes the dashboard aggregates for the
// current project. Average resolution time is in hours over resolved
// deficiencies, zero when none are resolved.
func GetAnalyticsSummary(ctx context.Context) (*AnalyticsSummary, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	summary := AnalyticsSummary{
		DeficienciesBySeverity: map[string]int{},
		LocationHeatmap:        map[string]int{},
	}

	var total, completed int64
	if err := db.WithContext(ctx).Model(&Inspection{}).
		Where("project_id = ?", projectId).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&Inspection{}).
		Where("project_id = ? AND status = ?", projectId, InspectionStatusCompleted).
		Count(&completed).Error; err != nil {
		return nil, err
	}
	summary.TotalInspections = int(total)
	summary.CompletedInspections = int(completed)

	var open, resolved int64
	if err := db.WithContext(ctx).Model(&Deficiency{}).
		Where("project_id = ? AND status <> ?", projectId, DeficiencyStatusResolved).
		Count(&open).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&Deficiency{}).
		Where("project_id = ? AND status = ?", projectId, DeficiencyStatusResolved).
		Count(&resolved).Error; err != nil {
		return nil, err
	}
	summary.OpenDeficiencies = int(open)
	summary.ResolvedDeficiencies = int(resolved)

	var bySeverity []countRow
	err = db.WithContext(ctx).Model(&Deficiency{}).
		Select("severity as `key`, count(*) as count").
		Where("project_id = ?", projectId).
		Group("severity").
		Scan(&bySeverity).Error
	if err != nil {
		return nil, err
	}
	for _, row := range bySeverity {
		summary.DeficienciesBySeverity[row.Key] = row.Count
	}

	var byLocation []countRow
	err = db.WithContext(ctx).Model(&Deficiency{}).
		Select("location as `key`, count(*) as count").
		Where("project_id = ?", projectId).
		Group("location").
		Scan(&byLocation).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byLocation {
		summary.LocationHeatmap[row.Key] = row.Count
	}

	if summary.ResolvedDeficiencies > 0 {
		var avgHours *float64
		err = db.WithContext(ctx).Model(&Deficiency{}).
			Select("avg(timestampdiff(second, created_at, resolved_at)) / 3600.0").
			Where("project_id = ? AND status = ? AND resolved_at IS NOT NULL", projectId, DeficiencyStatusResolved).
			Scan(&avgHours).Error
		if err != nil {
			return nil, err
		}
		if avgHours != nil {
			summary.AverageResolutionTime = *avgHours
		}
	}

	return &summary, nil
}
