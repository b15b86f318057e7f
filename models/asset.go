package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/assets_backend/config"
	"github.com/mmdatafocus/assets_backend/utils"
	"github.com/shopspring/decimal"
)

// The asset register is owned by the asset-management module; the stocktaking
// subsystem only ever reads it. Rows are written by that module (and by
// cmd/seed-dev in development).

type Asset struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	Name         string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Tag          string          `gorm:"size:100;not null" json:"tag" binding:"required"`
	CategoryId   int             `gorm:"index;not null" json:"category_id"`
	DepartmentId int             `gorm:"index;not null" json:"department_id"`
	Status       AssetStatus     `gorm:"type:enum('Active','InUse','Idle','UnderRepair','Retired');not null;default:Active" json:"status"`
	Location     string          `gorm:"size:255" json:"location"`
	Cost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Asset) GetId() int {
	return obj.ID
}

func (obj Asset) GetBusinessId() string {
	return obj.BusinessId
}

type AssetCategory struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"primary_key;autoIncrement:false;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj AssetCategory) GetBusinessId() string {
	return obj.BusinessId
}

type Department struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"primary_key;autoIncrement:false;not null" json:"business_id"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Department) GetBusinessId() string {
	return obj.BusinessId
}

func GetAsset(ctx context.Context, id int) (*Asset, error) {
	return GetResource[Asset](ctx, id)
}

// ListAssets filters the register; keyword matches name, tag or location.
func ListAssets(ctx context.Context, categoryId *int, departmentId *int, status *AssetStatus, keyword *string) ([]*Asset, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)

	if categoryId != nil && *categoryId > 0 {
		dbCtx.Where("category_id = ?", *categoryId)
	}
	if departmentId != nil && *departmentId > 0 {
		dbCtx.Where("department_id = ?", *departmentId)
	}
	if status != nil && *status != "" {
		dbCtx.Where("status = ?", *status)
	}
	if keyword != nil && *keyword != "" {
		like := "%" + strings.ToLower(*keyword) + "%"
		dbCtx.Where("LOWER(name) LIKE ? OR LOWER(tag) LIKE ? OR LOWER(location) LIKE ?", like, like, like)
	}

	var assets []*Asset
	if err := dbCtx.Order("id").Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// list all categories, redis or db, cache result
func ListAllAssetCategories(ctx context.Context) ([]*AssetCategory, error) {
	return ListAllResource[AssetCategory, AssetCategory](ctx, "name")
}

// list all departments, redis or db, cache result
func ListAllDepartments(ctx context.Context) ([]*Department, error) {
	return ListAllResource[Department, Department](ctx, "name")
}
