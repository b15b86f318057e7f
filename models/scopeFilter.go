package models

import (
	"context"
	"strings"

	"github.com/mmdatafocus/assets_backend/config"
	"github.com/mmdatafocus/assets_backend/utils"
	"gorm.io/gorm"
)

// ScopeFilter pins down which slice of the register a stocktake covers. It is
// stored on the task as a JSON column so the task stays self-describing after
// categories or departments are renamed.
type ScopeFilter struct {
	CategoryIds      []int         `json:"category_ids,omitempty"`
	DepartmentIds    []int         `json:"department_ids,omitempty"`
	AssetStatuses    []AssetStatus `json:"asset_statuses,omitempty"`
	LocationContains string        `json:"location_contains,omitempty"`
}

// validate enforces the filter/type pairing rules. The narrowing fields
// (statuses, location) are legal for every task type.
func (f *ScopeFilter) validate(ctx context.Context, businessId string, taskType InventoryTaskType) error {
	switch taskType {
	case InventoryTaskTypeFull:
		if len(f.CategoryIds) > 0 {
			return utils.NewValidationError("category filter is not allowed for a full stocktake")
		}
		if len(f.DepartmentIds) > 0 {
			return utils.NewValidationError("department filter is not allowed for a full stocktake")
		}
	case InventoryTaskTypeByCategory:
		if len(f.CategoryIds) == 0 {
			return utils.NewValidationError("category ids are required for a by-category stocktake")
		}
		if len(f.DepartmentIds) > 0 {
			return utils.NewValidationError("department filter is not allowed for a by-category stocktake")
		}
		if err := utils.ValidateResourcesId[AssetCategory](ctx, businessId, f.CategoryIds); err != nil {
			if utils.IsNotFound(err) {
				return utils.NewValidationError("one or more category ids do not exist")
			}
			return err
		}
	case InventoryTaskTypeByDepartment:
		if len(f.DepartmentIds) == 0 {
			return utils.NewValidationError("department ids are required for a by-department stocktake")
		}
		if len(f.CategoryIds) > 0 {
			return utils.NewValidationError("category filter is not allowed for a by-department stocktake")
		}
		if err := utils.ValidateResourcesId[Department](ctx, businessId, f.DepartmentIds); err != nil {
			if utils.IsNotFound(err) {
				return utils.NewValidationError("one or more department ids do not exist")
			}
			return err
		}
	default:
		return utils.NewValidationError("invalid inventory task type")
	}

	for _, status := range f.AssetStatuses {
		switch status {
		case AssetStatusActive, AssetStatusInUse, AssetStatusIdle,
			AssetStatusUnderRepair, AssetStatusRetired:
		default:
			return utils.NewValidationError("invalid asset status in scope filter")
		}
	}

	return nil
}

// scopeQuery builds the register query matching the task scope. Callers attach
// Count, Pluck or Find on top of it.
func scopeQuery(ctx context.Context, businessId string, taskType InventoryTaskType, filter *ScopeFilter) *gorm.DB {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Asset{}).
		Where("business_id = ?", businessId).
		Where("is_active = ?", true)

	if filter == nil {
		return dbCtx
	}

	switch taskType {
	case InventoryTaskTypeByCategory:
		dbCtx.Where("category_id IN ?", filter.CategoryIds)
	case InventoryTaskTypeByDepartment:
		dbCtx.Where("department_id IN ?", filter.DepartmentIds)
	}

	if len(filter.AssetStatuses) > 0 {
		dbCtx.Where("status IN ?", filter.AssetStatuses)
	}
	if filter.LocationContains != "" {
		dbCtx.Where("LOWER(location) LIKE ?", "%"+strings.ToLower(filter.LocationContains)+"%")
	}

	return dbCtx
}

// ResolveTaskScope counts the register rows the task covers at this moment.
func ResolveTaskScope(ctx context.Context, businessId string, taskType InventoryTaskType, filter *ScopeFilter) (int, error) {
	var count int64
	if err := scopeQuery(ctx, businessId, taskType, filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// ResolveTaskScopeAssets lists the register rows the task covers at this
// moment, ordered by id.
func ResolveTaskScopeAssets(ctx context.Context, businessId string, taskType InventoryTaskType, filter *ScopeFilter) ([]*Asset, error) {
	var assets []*Asset
	if err := scopeQuery(ctx, businessId, taskType, filter).Order("id").Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}
