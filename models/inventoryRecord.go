package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/assets_backend/config"
	"github.com/mmdatafocus/assets_backend/utils"
	"gorm.io/gorm"
)

// InventoryRecord is one reconciliation line: one asset checked once within
// one task. The (task_id, asset_id) unique index is the invariant of record;
// everything else is an optimization.
type InventoryRecord struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"uniqueIndex:idx_task_asset,priority:1;not null" json:"business_id"`
	TaskId     int    `gorm:"uniqueIndex:idx_task_asset,priority:2;not null" json:"task_id"`
	AssetId    int    `gorm:"uniqueIndex:idx_task_asset,priority:3;not null" json:"asset_id"`

	// ExpectedStatus snapshots the register at check time so the record stays
	// meaningful after the asset is updated.
	ExpectedStatus AssetStatus          `gorm:"type:enum('Active','InUse','Idle','UnderRepair','Retired');not null" json:"expected_status"`
	ActualStatus   AssetStatus          `gorm:"type:enum('Active','InUse','Idle','UnderRepair','Retired');not null" json:"actual_status"`
	Result         InventoryCheckResult `gorm:"type:enum('Normal','Surplus','Deficit','Damaged');not null" json:"result"`
	Notes          string               `gorm:"type:text" json:"notes"`
	CheckedBy      string               `gorm:"size:100;not null" json:"checked_by"`
	CheckedAt      time.Time            `gorm:"not null" json:"checked_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj InventoryRecord) GetId() int {
	return obj.ID
}

func (obj InventoryRecord) GetCursor() string {
	return obj.CheckedAt.String()
}

func (obj InventoryRecord) GetBusinessId() string {
	return obj.BusinessId
}

type NewInventoryRecord struct {
	TaskId       int                  `json:"task_id" binding:"required"`
	AssetId      int                  `json:"asset_id" binding:"required"`
	ActualStatus AssetStatus          `json:"actual_status" binding:"required"`
	Result       InventoryCheckResult `json:"result" binding:"required"`
	Notes        string               `json:"notes"`
}

// createInventoryRecordTx inserts one record and bumps the task counters in
// the SAME transaction, so a crash between the two can never leave them apart.
// The task row is re-read under FOR UPDATE because its status may have moved
// since the caller last saw it.
func createInventoryRecordTx(tx *gorm.DB, ctx context.Context, businessId string, userName string, input *NewInventoryRecord) (*InventoryRecord, error) {

	if input.Result.counterColumn() == "" {
		return nil, utils.NewValidationError("invalid inventory check result")
	}

	var task InventoryTask
	if err := tx.WithContext(ctx).
		Clauses(forUpdate()).
		Where("business_id = ?", businessId).
		First(&task, input.TaskId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if task.CurrentStatus != InventoryTaskStatusInProgress {
		return nil, utils.NewStateConflict(string(task.CurrentStatus),
			"records can only be added to an in-progress task")
	}

	var asset Asset
	if err := tx.WithContext(ctx).
		Where("business_id = ?", businessId).
		First(&asset, input.AssetId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	record := InventoryRecord{
		BusinessId:     businessId,
		TaskId:         task.ID,
		AssetId:        asset.ID,
		ExpectedStatus: asset.Status,
		ActualStatus:   input.ActualStatus,
		Result:         input.Result,
		Notes:          input.Notes,
		CheckedBy:      userName,
		CheckedAt:      time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &utils.DuplicateCheckError{TaskId: task.ID, AssetId: asset.ID}
		}
		return nil, err
	}

	counterColumn := input.Result.counterColumn()
	if err := tx.WithContext(ctx).Model(&InventoryTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{
			"checked_assets": gorm.Expr("checked_assets + 1"),
			counterColumn:    gorm.Expr(counterColumn + " + 1"),
		}).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

// CreateInventoryRecord records a single check in its own transaction.
func CreateInventoryRecord(ctx context.Context, input *NewInventoryRecord) (*InventoryRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	db := config.GetDB()
	tx := db.Begin()
	record, err := createInventoryRecordTx(tx, ctx, businessId, userName, input)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return record, nil
}

// CreateInventoryRecords records a batch of checks against one task. Each item
// runs in its own transaction; a bad item is reported and skipped, the rest
// proceed. The redis lock only serializes friendly writers; the unique index
// is what actually prevents double counting.
func CreateInventoryRecords(ctx context.Context, taskId int, inputs []*NewInventoryRecord) (*BatchResult[InventoryRecord], error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	if len(inputs) == 0 {
		return nil, utils.NewValidationError("batch must contain at least one record")
	}

	// best effort lock, proceed anyway when redis is down
	if locker := config.GetRedisLock(); locker != nil {
		lockKey := fmt.Sprintf("InventoryTask:Batch:%s:%d", businessId, taskId)
		lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 10),
		})
		if err == nil {
			defer lock.Release(ctx)
		}
	}

	db := config.GetDB()
	result := RunBatch(inputs,
		func(input *NewInventoryRecord) string {
			return "asset " + strconv.Itoa(input.AssetId)
		},
		func(input *NewInventoryRecord) (*InventoryRecord, error) {
			if input.TaskId == 0 {
				input.TaskId = taskId
			}
			if input.TaskId != taskId {
				return nil, utils.NewValidationError("record task id does not match the batch task")
			}
			tx := db.Begin()
			record, err := createInventoryRecordTx(tx, ctx, businessId, userName, input)
			if err != nil {
				tx.Rollback()
				return nil, err
			}
			if err := tx.Commit().Error; err != nil {
				return nil, err
			}
			return record, nil
		})

	return result, nil
}

func GetInventoryRecord(ctx context.Context, id int) (*InventoryRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchModel[InventoryRecord](ctx, businessId, id)
}

func PaginateInventoryRecord(ctx context.Context,
	limit int, after *string,
	taskId *int,
	result *InventoryCheckResult,
	keyword *string,
) ([]Edge[InventoryRecord], *PageInfo, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&InventoryRecord{}).
		Where("business_id = ?", businessId)

	if taskId != nil && *taskId > 0 {
		dbCtx.Where("task_id = ?", *taskId)
	}
	if result != nil && *result != "" {
		dbCtx.Where("result = ?", *result)
	}
	if keyword != nil && *keyword != "" {
		like := "%" + strings.ToLower(*keyword) + "%"
		dbCtx.Where("asset_id IN (?)",
			db.Model(&Asset{}).Select("id").
				Where("business_id = ?", businessId).
				Where("LOWER(name) LIKE ? OR LOWER(tag) LIKE ?", like, like))
	}

	return FetchPageCompositeCursor[InventoryRecord](dbCtx, limit, after, "checked_at", "<")
}
