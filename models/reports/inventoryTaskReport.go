package reports

import (
	"context"
	"errors"
	"strings"

	"github.com/mmdatafocus/assets_backend/config"
	"github.com/mmdatafocus/assets_backend/models"
	"github.com/mmdatafocus/assets_backend/utils"
	"github.com/shopspring/decimal"
)

type InventoryTaskSummary struct {
	TotalAssets     int             `json:"total_assets"`
	CheckedAssets   int             `json:"checked_assets"`
	UncheckedAssets int             `json:"unchecked_assets"`
	NormalAssets    int             `json:"normal_assets"`
	SurplusAssets   int             `json:"surplus_assets"`
	DeficitAssets   int             `json:"deficit_assets"`
	DamagedAssets   int             `json:"damaged_assets"`
	Progress        decimal.Decimal `json:"progress"`
}

type InventoryGroupStat struct {
	GroupId       int    `json:"group_id"`
	GroupName     string `json:"group_name"`
	TotalAssets   int    `json:"total_assets"`
	CheckedAssets int    `json:"checked_assets"`
	NormalAssets  int    `json:"normal_assets"`
	SurplusAssets int    `json:"surplus_assets"`
	DeficitAssets int    `json:"deficit_assets"`
	DamagedAssets int    `json:"damaged_assets"`
}

type InventoryTaskReport struct {
	Task            *models.InventoryTask     `json:"task"`
	Summary         *InventoryTaskSummary     `json:"summary"`
	Records         []*models.InventoryRecord `json:"records"`
	CategoryStats   []*InventoryGroupStat     `json:"category_stats"`
	DepartmentStats []*InventoryGroupStat     `json:"department_stats"`
}

// group_id/group_name come from the grouping table; asset scope conditions sit
// in the join so empty groups still render as zero rows. Record columns are
// COALESCEd for the same reason.
const groupStatTemplate = `
SELECT
    g.id AS group_id,
    g.name AS group_name,
    COUNT(DISTINCT a.id) AS total_assets,
    COUNT(r.id) AS checked_assets,
    COALESCE(SUM(CASE WHEN r.result = 'Normal' THEN 1 ELSE 0 END), 0) AS normal_assets,
    COALESCE(SUM(CASE WHEN r.result = 'Surplus' THEN 1 ELSE 0 END), 0) AS surplus_assets,
    COALESCE(SUM(CASE WHEN r.result = 'Deficit' THEN 1 ELSE 0 END), 0) AS deficit_assets,
    COALESCE(SUM(CASE WHEN r.result = 'Damaged' THEN 1 ELSE 0 END), 0) AS damaged_assets
FROM
    {{ .groupTable }} g
    LEFT JOIN assets a ON a.{{ .groupColumn }} = g.id
        AND a.business_id = g.business_id
        AND a.is_active = 1
        {{- if .filterCategories }} AND a.category_id IN @categoryIds {{- end }}
        {{- if .filterDepartments }} AND a.department_id IN @departmentIds {{- end }}
        {{- if .filterStatuses }} AND a.status IN @statuses {{- end }}
        {{- if .filterLocation }} AND LOWER(a.location) LIKE @locationLike {{- end }}
    LEFT JOIN inventory_records r ON r.asset_id = a.id
        AND r.task_id = @taskId
        AND r.business_id = @businessId
WHERE
    g.business_id = @businessId
    {{- if .restrictGroups }} AND g.id IN @groupIds {{- end }}
GROUP BY
    g.id, g.name
ORDER BY
    g.name;
`

// GetInventoryTaskReport rolls a task up by category and by department. The
// counter columns on the task are the summary of record; group rows are
// recomputed from the records at read time.
func GetInventoryTaskReport(ctx context.Context, taskId int) (*InventoryTaskReport, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	task, err := models.GetInventoryTask(ctx, taskId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()

	var records []*models.InventoryRecord
	if err := db.WithContext(ctx).
		Where("business_id = ? AND task_id = ?", businessId, taskId).
		Order("checked_at, id").
		Find(&records).Error; err != nil {
		return nil, err
	}

	summary := InventoryTaskSummary{
		TotalAssets:     task.TotalAssets,
		CheckedAssets:   task.CheckedAssets,
		UncheckedAssets: task.TotalAssets - task.CheckedAssets,
		NormalAssets:    task.NormalAssets,
		SurplusAssets:   task.SurplusAssets,
		DeficitAssets:   task.DeficitAssets,
		DamagedAssets:   task.DamagedAssets,
		Progress:        task.Progress,
	}
	if summary.UncheckedAssets < 0 {
		summary.UncheckedAssets = 0
	}

	categoryStats, err := queryGroupStats(ctx, businessId, task, "asset_categories", "category_id")
	if err != nil {
		return nil, err
	}
	departmentStats, err := queryGroupStats(ctx, businessId, task, "departments", "department_id")
	if err != nil {
		return nil, err
	}

	// surplus finds can land outside the task scope; without this row the
	// group breakdowns would not sum to the summary counters
	if outOfScope, err := outOfScopeStat(ctx, businessId, task, records); err != nil {
		return nil, err
	} else if outOfScope != nil {
		categoryStats = append(categoryStats, outOfScope)
		departmentStats = append(departmentStats, outOfScope)
	}

	return &InventoryTaskReport{
		Task:            task,
		Summary:         &summary,
		Records:         records,
		CategoryStats:   categoryStats,
		DepartmentStats: departmentStats,
	}, nil
}

// outOfScopeStat rolls up records whose asset sits outside the task scope.
// Returns nil when every record is in scope.
func outOfScopeStat(ctx context.Context, businessId string, task *models.InventoryTask, records []*models.InventoryRecord) (*InventoryGroupStat, error) {
	scopeAssets, err := models.ResolveTaskScopeAssets(ctx, businessId, task.TaskType, task.ScopeFilter)
	if err != nil {
		return nil, err
	}
	inScope := make(map[int]bool, len(scopeAssets))
	for _, asset := range scopeAssets {
		inScope[asset.ID] = true
	}

	stat := InventoryGroupStat{GroupName: "Out of Scope"}
	for _, record := range records {
		if inScope[record.AssetId] {
			continue
		}
		stat.CheckedAssets++
		switch record.Result {
		case models.InventoryCheckResultNormal:
			stat.NormalAssets++
		case models.InventoryCheckResultSurplus:
			stat.SurplusAssets++
		case models.InventoryCheckResultDeficit:
			stat.DeficitAssets++
		case models.InventoryCheckResultDamaged:
			stat.DamagedAssets++
		}
	}
	if stat.CheckedAssets == 0 {
		return nil, nil
	}
	return &stat, nil
}

func queryGroupStats(ctx context.Context, businessId string, task *models.InventoryTask, groupTable string, groupColumn string) ([]*InventoryGroupStat, error) {

	filter := task.ScopeFilter
	if filter == nil {
		filter = &models.ScopeFilter{}
	}

	// a scoped task only reports the groups it was scoped to
	var groupIds []int
	switch {
	case task.TaskType == models.InventoryTaskTypeByCategory && groupTable == "asset_categories":
		groupIds = filter.CategoryIds
	case task.TaskType == models.InventoryTaskTypeByDepartment && groupTable == "departments":
		groupIds = filter.DepartmentIds
	}

	sql, err := utils.ExecTemplate(groupStatTemplate, map[string]interface{}{
		"groupTable":        groupTable,
		"groupColumn":       groupColumn,
		"filterCategories":  len(filter.CategoryIds) > 0,
		"filterDepartments": len(filter.DepartmentIds) > 0,
		"filterStatuses":    len(filter.AssetStatuses) > 0,
		"filterLocation":    filter.LocationContains != "",
		"restrictGroups":    len(groupIds) > 0,
	})
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var stats []*InventoryGroupStat
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId":    businessId,
		"taskId":        task.ID,
		"categoryIds":   filter.CategoryIds,
		"departmentIds": filter.DepartmentIds,
		"statuses":      filter.AssetStatuses,
		"locationLike":  "%" + strings.ToLower(filter.LocationContains) + "%",
		"groupIds":      groupIds,
	}).Scan(&stats).Error; err != nil {
		return nil, err
	}
	if stats == nil {
		stats = make([]*InventoryGroupStat, 0)
	}

	return stats, nil
}
