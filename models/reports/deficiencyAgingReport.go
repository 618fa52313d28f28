package reports

import (
	"context"
	"errors"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"github.com/shopspring/decimal"
)

type DeficiencyAgingResponse struct {
	Severity         string          `json:"Severity"`
	OpenCount        int             `json:"OpenCount"`
	ResolvedCount    int             `json:"ResolvedCount"`
	AvgOpenHours     decimal.Decimal `json:"AvgOpenHours"`
	AvgResolvedHours decimal.Decimal `json:"AvgResolvedHours"`
	OldestOpenHours  decimal.Decimal `json:"OldestOpenHours"`
}

// GetDeficiencyAgingReport breaks open and resolved deficiencies down
// by severity with how long each bucket has been sitting.
func GetDeficiencyAgingReport(ctx context.Context) ([]*DeficiencyAgingResponse, error) {

	sql := `
SELECT
    severity,
    SUM(CASE WHEN status <> 'resolved' THEN 1 ELSE 0 END) AS open_count,
    SUM(CASE WHEN status = 'resolved' THEN 1 ELSE 0 END) AS resolved_count,
    COALESCE(AVG(CASE WHEN status <> 'resolved'
        THEN TIMESTAMPDIFF(SECOND, created_at, NOW()) / 3600.0 END), 0) AS avg_open_hours,
    COALESCE(AVG(CASE WHEN status = 'resolved' AND resolved_at IS NOT NULL
        THEN TIMESTAMPDIFF(SECOND, created_at, resolved_at) / 3600.0 END), 0) AS avg_resolved_hours,
    COALESCE(MAX(CASE WHEN status <> 'resolved'
        THEN TIMESTAMPDIFF(SECOND, created_at, NOW()) / 3600.0 END), 0) AS oldest_open_hours
FROM
    deficiencies
WHERE
    project_id = @projectId
GROUP BY severity
ORDER BY FIELD(severity, 'high', 'medium', 'low');
`

	projectId, ok := utils.GetProjectIdFromContext(ctx)
	if !ok || projectId == "" {
		return nil, errors.New("project id is required")
	}

	var records []*DeficiencyAgingResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"projectId": projectId,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r DeficiencyAgingResponse) GetCellValues() []interface{} {
	return []interface{}{
		r.Severity,
		r.OpenCount,
		r.ResolvedCount,
		r.AvgOpenHours,
		r.AvgResolvedHours,
		r.OldestOpenHours,
	}
}
