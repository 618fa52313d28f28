package reports

import (
	"context"
	"errors"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"github.com/shopspring/decimal"
)

type InspectionSummaryResponse struct {
	InspectionType  string          `json:"InspectionType"`
	Total           int             `json:"Total"`
	Completed       int             `json:"Completed"`
	Failed          int             `json:"Failed"`
	AvgDurationMins decimal.Decimal `json:"AvgDurationMins"`
}

// GetInspectionSummaryReport aggregates inspections by type with
// completion counts and average actual duration.
func GetInspectionSummaryReport(ctx context.Context) ([]*InspectionSummaryResponse, error) {

	sql := `
SELECT
    type AS inspection_type,
    COUNT(*) AS total,
    SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS completed,
    SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS failed,
    COALESCE(AVG(CASE WHEN status = 'completed' THEN actual_duration END), 0) AS avg_duration_mins
FROM
    inspections
WHERE
    project_id = @projectId
GROUP BY type
ORDER BY type;
`

	projectId, ok := utils.GetProjectIdFromContext(ctx)
	if !ok || projectId == "" {
		return nil, errors.New("project id is required")
	}

	var records []*InspectionSummaryResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"projectId": projectId,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r InspectionSummaryResponse) GetCellValues() []interface{} {
	return []interface{}{
		r.InspectionType,
		r.Total,
		r.Completed,
		r.Failed,
		r.AvgDurationMins,
	}
}
