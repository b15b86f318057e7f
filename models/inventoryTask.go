package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/assets_backend/config"
	"github.com/mmdatafocus/assets_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InventoryTask struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	BusinessId    string              `gorm:"index;not null" json:"business_id"`
	TaskName      string              `gorm:"size:255;not null" json:"task_name" binding:"required"`
	TaskType      InventoryTaskType   `gorm:"type:enum('Full','ByCategory','ByDepartment');not null" json:"task_type"`
	ScopeFilter   *ScopeFilter        `gorm:"serializer:json" json:"scope_filter"`
	CurrentStatus InventoryTaskStatus `gorm:"type:enum('Pending','InProgress','Completed');not null;default:Pending" json:"current_status"`
	CreatedBy     string              `gorm:"size:100;not null" json:"created_by"`
	Notes         string              `gorm:"type:text" json:"notes"`
	StartDate     *time.Time          `json:"start_date"`
	EndDate       *time.Time          `json:"end_date"`

	// TotalAssets is frozen at creation; the live register may drift afterwards.
	TotalAssets   int `gorm:"not null;default:0" json:"total_assets"`
	CheckedAssets int `gorm:"not null;default:0" json:"checked_assets"`
	NormalAssets  int `gorm:"not null;default:0" json:"normal_assets"`
	SurplusAssets int `gorm:"not null;default:0" json:"surplus_assets"`
	DeficitAssets int `gorm:"not null;default:0" json:"deficit_assets"`
	DamagedAssets int `gorm:"not null;default:0" json:"damaged_assets"`

	Progress decimal.Decimal `gorm:"-" json:"progress"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj InventoryTask) GetId() int {
	return obj.ID
}

func (obj InventoryTask) GetCursor() string {
	return obj.CreatedAt.String()
}

func (obj InventoryTask) GetBusinessId() string {
	return obj.BusinessId
}

func (obj *InventoryTask) AfterFind(tx *gorm.DB) error {
	obj.Progress = taskProgress(obj.CheckedAssets, obj.TotalAssets)
	return nil
}

// taskProgress is checked/total as a percentage, one decimal place. A task
// covering nothing reports 0; never divides by zero.
func taskProgress(checked int, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(checked)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100)).
		Round(1)
}

type NewInventoryTask struct {
	TaskName    string            `json:"task_name" binding:"required"`
	TaskType    InventoryTaskType `json:"task_type" binding:"required"`
	ScopeFilter *ScopeFilter      `json:"scope_filter"`
	Notes       string            `json:"notes"`
	StartDate   *MyDateString     `json:"start_date"`
	EndDate     *MyDateString     `json:"end_date"`
}

type UpdateInventoryTaskInput struct {
	TaskName      *string              `json:"task_name"`
	Notes         *string              `json:"notes"`
	StartDate     *MyDateString        `json:"start_date"`
	EndDate       *MyDateString        `json:"end_date"`
	CurrentStatus *InventoryTaskStatus `json:"current_status"`
}

// CreateInventoryTask snapshots the scope size and opens the task as Pending.
func CreateInventoryTask(ctx context.Context, input *NewInventoryTask) (*InventoryTask, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	if strings.TrimSpace(input.TaskName) == "" {
		return nil, utils.NewValidationError("task name is required")
	}
	if strings.TrimSpace(userName) == "" {
		return nil, utils.NewValidationError("created by is required")
	}

	filter := input.ScopeFilter
	if filter == nil {
		filter = &ScopeFilter{}
	}
	if err := filter.validate(ctx, businessId, input.TaskType); err != nil {
		return nil, err
	}

	totalAssets, err := ResolveTaskScope(ctx, businessId, input.TaskType, filter)
	if err != nil {
		return nil, err
	}

	task := InventoryTask{
		BusinessId:    businessId,
		TaskName:      input.TaskName,
		TaskType:      input.TaskType,
		ScopeFilter:   filter,
		CurrentStatus: InventoryTaskStatusPending,
		CreatedBy:     userName,
		Notes:         input.Notes,
		TotalAssets:   totalAssets,
	}

	// planned dates, day bounds in the business timezone
	if input.StartDate != nil || input.EndDate != nil {
		business, err := GetBusinessById(ctx, businessId)
		if err != nil {
			return nil, err
		}
		if err := input.StartDate.StartOfDayUTCTime(business.Timezone); err != nil {
			return nil, utils.NewValidationError("invalid start date")
		}
		if err := input.EndDate.EndOfDayUTCTime(business.Timezone); err != nil {
			return nil, utils.NewValidationError("invalid end date")
		}
		if input.StartDate != nil {
			start := time.Time(*input.StartDate)
			task.StartDate = &start
		}
		if input.EndDate != nil {
			end := time.Time(*input.EndDate)
			task.EndDate = &end
		}
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&task).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	task.Progress = taskProgress(task.CheckedAssets, task.TotalAssets)
	return &task, nil
}

// StartInventoryTask moves Pending -> InProgress and stamps start_date once.
func StartInventoryTask(ctx context.Context, id int) (*InventoryTask, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	tx := db.Begin()

	var task InventoryTask
	if err := tx.WithContext(ctx).
		Clauses(forUpdate()).
		Where("business_id = ?", businessId).
		First(&task, id).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	if task.CurrentStatus != InventoryTaskStatusPending {
		tx.Rollback()
		return nil, utils.NewStateConflict(string(task.CurrentStatus),
			"only a pending task can be started")
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"current_status": InventoryTaskStatusInProgress,
	}
	if task.StartDate == nil {
		updates["start_date"] = now
		task.StartDate = &now
	}
	if err := tx.WithContext(ctx).Model(&task).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	task.CurrentStatus = InventoryTaskStatusInProgress
	task.Progress = taskProgress(task.CheckedAssets, task.TotalAssets)
	return &task, nil
}

// CompleteInventoryTask moves InProgress -> Completed and stamps end_date.
// Coverage is not enforced; a partially checked task may still be closed.
func CompleteInventoryTask(ctx context.Context, id int) (*InventoryTask, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	tx := db.Begin()

	var task InventoryTask
	if err := tx.WithContext(ctx).
		Clauses(forUpdate()).
		Where("business_id = ?", businessId).
		First(&task, id).Error; err != nil {
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	if task.CurrentStatus != InventoryTaskStatusInProgress {
		tx.Rollback()
		return nil, utils.NewStateConflict(string(task.CurrentStatus),
			"only an in-progress task can be completed")
	}

	now := time.Now().UTC()
	if err := tx.WithContext(ctx).Model(&task).Updates(map[string]interface{}{
		"current_status": InventoryTaskStatusCompleted,
		"end_date":       now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	task.CurrentStatus = InventoryTaskStatusCompleted
	task.EndDate = &now
	task.Progress = taskProgress(task.CheckedAssets, task.TotalAssets)
	return &task, nil
}

// UpdateInventoryTask edits descriptive fields only. Status moves through
// Start/Complete, counters through record creation; neither is editable here.
func UpdateInventoryTask(ctx context.Context, id int, input *UpdateInventoryTaskInput) (*InventoryTask, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	task, err := utils.FetchModel[InventoryTask](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	if task.CurrentStatus == InventoryTaskStatusCompleted {
		return nil, utils.NewStateConflict(string(task.CurrentStatus),
			"a completed task is retained for audit and cannot be edited")
	}

	updates := map[string]interface{}{}
	if input.TaskName != nil {
		if strings.TrimSpace(*input.TaskName) == "" {
			return nil, utils.NewValidationError("task name is required")
		}
		updates["task_name"] = *input.TaskName
		task.TaskName = *input.TaskName
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
		task.Notes = *input.Notes
	}
	if input.StartDate != nil || input.EndDate != nil {
		business, err := GetBusinessById(ctx, businessId)
		if err != nil {
			return nil, err
		}
		if err := input.StartDate.StartOfDayUTCTime(business.Timezone); err != nil {
			return nil, utils.NewValidationError("invalid start date")
		}
		if err := input.EndDate.EndOfDayUTCTime(business.Timezone); err != nil {
			return nil, utils.NewValidationError("invalid end date")
		}
		if input.StartDate != nil {
			start := time.Time(*input.StartDate)
			updates["start_date"] = start
			task.StartDate = &start
		}
		if input.EndDate != nil {
			end := time.Time(*input.EndDate)
			updates["end_date"] = end
			task.EndDate = &end
		}
	}
	if len(updates) > 0 {
		db := config.GetDB()
		tx := db.Begin()
		if err := tx.WithContext(ctx).Model(&task).Updates(updates).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
	}

	// status edits go through the transition guards, never a raw column write
	if input.CurrentStatus != nil && *input.CurrentStatus != task.CurrentStatus {
		switch *input.CurrentStatus {
		case InventoryTaskStatusInProgress:
			return StartInventoryTask(ctx, id)
		case InventoryTaskStatusCompleted:
			return CompleteInventoryTask(ctx, id)
		case InventoryTaskStatusPending:
			return nil, utils.NewStateConflict(string(task.CurrentStatus),
				"a task cannot move back to pending")
		default:
			return nil, utils.NewValidationError("invalid inventory task status")
		}
	}

	return task, nil
}

// DeleteInventoryTask removes a pending task together with any records (there
// are none while pending, the FK cleanup is belt and braces).
func DeleteInventoryTask(ctx context.Context, id int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	task, err := utils.FetchModel[InventoryTask](ctx, businessId, id)
	if err != nil {
		return err
	}

	switch task.CurrentStatus {
	case InventoryTaskStatusInProgress:
		return utils.NewStateConflict(string(task.CurrentStatus),
			"task is active; complete or abandon it first")
	case InventoryTaskStatusCompleted:
		return utils.NewStateConflict(string(task.CurrentStatus),
			"task is retained for audit; contact an administrator")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).
		Where("task_id = ?", task.ID).
		Delete(&InventoryRecord{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.WithContext(ctx).Delete(&task).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func GetInventoryTask(ctx context.Context, id int) (*InventoryTask, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchModel[InventoryTask](ctx, businessId, id)
}

func PaginateInventoryTask(ctx context.Context,
	limit int, after *string,
	status *InventoryTaskStatus,
	taskType *InventoryTaskType,
	keyword *string,
) ([]Edge[InventoryTask], *PageInfo, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&InventoryTask{}).
		Where("business_id = ?", businessId)

	if status != nil && *status != "" {
		dbCtx.Where("current_status = ?", *status)
	}
	if taskType != nil && *taskType != "" {
		dbCtx.Where("task_type = ?", *taskType)
	}
	if keyword != nil && *keyword != "" {
		like := "%" + strings.ToLower(*keyword) + "%"
		dbCtx.Where("LOWER(task_name) LIKE ? OR LOWER(created_by) LIKE ?", like, like)
	}

	return FetchPageCompositeCursor[InventoryTask](dbCtx, limit, after, "created_at", "<")
}

type ChecklistItem struct {
	Asset   *Asset           `json:"asset"`
	Checked bool             `json:"checked"`
	Record  *InventoryRecord `json:"record,omitempty"`
}

// ResolveChecklist lists the task's scope against what has been recorded so
// far. The scope is resolved live, so register changes after creation show up
// here even though total_assets stays frozen.
func ResolveChecklist(ctx context.Context, taskId int) ([]*ChecklistItem, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	task, err := utils.FetchModel[InventoryTask](ctx, businessId, taskId)
	if err != nil {
		return nil, err
	}

	assets, err := ResolveTaskScopeAssets(ctx, businessId, task.TaskType, task.ScopeFilter)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var records []*InventoryRecord
	if err := db.WithContext(ctx).
		Where("business_id = ? AND task_id = ?", businessId, taskId).
		Find(&records).Error; err != nil {
		return nil, err
	}
	recordByAsset := make(map[int]*InventoryRecord, len(records))
	for _, record := range records {
		recordByAsset[record.AssetId] = record
	}

	items := make([]*ChecklistItem, 0, len(assets))
	for _, asset := range assets {
		record := recordByAsset[asset.ID]
		items = append(items, &ChecklistItem{
			Asset:   asset,
			Checked: record != nil,
			Record:  record,
		})
	}
	return items, nil
}
