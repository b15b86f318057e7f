package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/assets_backend/config"
	"github.com/mmdatafocus/assets_backend/models"
	"github.com/mmdatafocus/assets_backend/models/reports"
	"github.com/mmdatafocus/assets_backend/utils"
	"github.com/shopspring/decimal"
)

// Regression: the full stocktake lifecycle. A task over 10 assets, started,
// fed a batch of 11 submissions (one duplicate), completed. The duplicate must
// be rejected by the unique index without disturbing the counters.
func TestStocktakeLifecycle_BatchWithDuplicate(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegration(t)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Stocktake Co",
		Email: "owner@stocktake.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)

	db := config.GetDB()
	category := models.AssetCategory{BusinessId: businessID, Name: "Laptops", IsActive: utils.NewTrue()}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	department := models.Department{BusinessId: businessID, Name: "Engineering", IsActive: utils.NewTrue()}
	if err := db.Create(&department).Error; err != nil {
		t.Fatalf("seed department: %v", err)
	}
	otherCategory := models.AssetCategory{BusinessId: businessID, Name: "Monitors", IsActive: utils.NewTrue()}
	if err := db.Create(&otherCategory).Error; err != nil {
		t.Fatalf("seed other category: %v", err)
	}
	otherDepartment := models.Department{BusinessId: businessID, Name: "Finance", IsActive: utils.NewTrue()}
	if err := db.Create(&otherDepartment).Error; err != nil {
		t.Fatalf("seed other department: %v", err)
	}

	assetIds := make([]int, 0, 10)
	for i := 1; i <= 10; i++ {
		asset := models.Asset{
			BusinessId:   businessID,
			Name:         fmt.Sprintf("Laptop %02d", i),
			Tag:          fmt.Sprintf("LT-%04d", i),
			CategoryId:   category.ID,
			DepartmentId: department.ID,
			Status:       models.AssetStatusInUse,
			Location:     "Floor 1",
			IsActive:     utils.NewTrue(),
		}
		if err := db.Create(&asset).Error; err != nil {
			t.Fatalf("seed asset %d: %v", i, err)
		}
		assetIds = append(assetIds, asset.ID)
	}

	// sits outside the task's category scope; found unexpectedly during the count
	strayAsset := models.Asset{
		BusinessId:   businessID,
		Name:         "Monitor 01",
		Tag:          "MN-0001",
		CategoryId:   otherCategory.ID,
		DepartmentId: otherDepartment.ID,
		Status:       models.AssetStatusIdle,
		Location:     "Floor 2",
		IsActive:     utils.NewTrue(),
	}
	if err := db.Create(&strayAsset).Error; err != nil {
		t.Fatalf("seed stray asset: %v", err)
	}

	task, err := models.CreateInventoryTask(ctx, &models.NewInventoryTask{
		TaskName: "Q3 Laptop Count",
		TaskType: models.InventoryTaskTypeByCategory,
		ScopeFilter: &models.ScopeFilter{
			CategoryIds: []int{category.ID},
		},
	})
	if err != nil {
		t.Fatalf("CreateInventoryTask: %v", err)
	}
	if task.CurrentStatus != models.InventoryTaskStatusPending {
		t.Fatalf("expected Pending, got %s", task.CurrentStatus)
	}
	if task.TotalAssets != 10 {
		t.Fatalf("expected total_assets=10, got %d", task.TotalAssets)
	}

	// records against a pending task must be refused
	if _, err := models.CreateInventoryRecord(ctx, &models.NewInventoryRecord{
		TaskId:       task.ID,
		AssetId:      assetIds[0],
		ActualStatus: models.AssetStatusInUse,
		Result:       models.InventoryCheckResultNormal,
	}); !utils.IsStateConflict(err) {
		t.Fatalf("expected StateConflict for pending task, got %v", err)
	}

	task, err = models.StartInventoryTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("StartInventoryTask: %v", err)
	}
	if task.CurrentStatus != models.InventoryTaskStatusInProgress {
		t.Fatalf("expected InProgress, got %s", task.CurrentStatus)
	}
	if task.StartDate == nil {
		t.Fatalf("expected start_date to be set")
	}
	firstStart := *task.StartDate

	// double start must conflict and must not move start_date
	if _, err := models.StartInventoryTask(ctx, task.ID); !utils.IsStateConflict(err) {
		t.Fatalf("expected StateConflict on double start, got %v", err)
	}
	refetched, err := models.GetInventoryTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetInventoryTask: %v", err)
	}
	if refetched.StartDate == nil || !refetched.StartDate.Equal(firstStart) {
		t.Fatalf("start_date moved after rejected restart")
	}

	// 11 submissions: 8 normal, 1 deficit, 1 out-of-scope surplus, then
	// asset[0] again. assetIds[9] is never checked; the stray surplus still
	// brings checked up to the frozen total.
	inputs := make([]*models.NewInventoryRecord, 0, 11)
	for i := 0; i < 8; i++ {
		inputs = append(inputs, &models.NewInventoryRecord{
			TaskId:       task.ID,
			AssetId:      assetIds[i],
			ActualStatus: models.AssetStatusInUse,
			Result:       models.InventoryCheckResultNormal,
		})
	}
	inputs = append(inputs, &models.NewInventoryRecord{
		TaskId:       task.ID,
		AssetId:      assetIds[8],
		ActualStatus: models.AssetStatusIdle,
		Result:       models.InventoryCheckResultDeficit,
	})
	inputs = append(inputs, &models.NewInventoryRecord{
		TaskId:       task.ID,
		AssetId:      strayAsset.ID,
		ActualStatus: models.AssetStatusIdle,
		Result:       models.InventoryCheckResultSurplus,
	})
	inputs = append(inputs, &models.NewInventoryRecord{
		TaskId:       task.ID,
		AssetId:      assetIds[0],
		ActualStatus: models.AssetStatusInUse,
		Result:       models.InventoryCheckResultNormal,
	})

	batch, err := models.CreateInventoryRecords(ctx, task.ID, inputs)
	if err != nil {
		t.Fatalf("CreateInventoryRecords: %v", err)
	}
	if batch.SuccessCount != 10 {
		t.Fatalf("expected success_count=10, got %d", batch.SuccessCount)
	}
	if batch.FailedCount != 1 {
		t.Fatalf("expected failed_count=1, got %d", batch.FailedCount)
	}
	if len(batch.Errors) != 1 {
		t.Fatalf("expected 1 batch error, got %d", len(batch.Errors))
	}
	if batch.Errors[0].Index != 10 {
		t.Fatalf("expected the duplicate at index 10, got %d", batch.Errors[0].Index)
	}

	task, err = models.GetInventoryTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetInventoryTask: %v", err)
	}
	if task.CheckedAssets != 10 {
		t.Fatalf("expected checked_assets=10, got %d", task.CheckedAssets)
	}
	if task.NormalAssets != 8 || task.DeficitAssets != 1 || task.SurplusAssets != 1 || task.DamagedAssets != 0 {
		t.Fatalf("unexpected counters: normal=%d deficit=%d surplus=%d damaged=%d",
			task.NormalAssets, task.DeficitAssets, task.SurplusAssets, task.DamagedAssets)
	}
	if sum := task.NormalAssets + task.SurplusAssets + task.DeficitAssets + task.DamagedAssets; sum != task.CheckedAssets {
		t.Fatalf("counters do not sum to checked: %d != %d", sum, task.CheckedAssets)
	}
	if !task.Progress.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected progress=100, got %s", task.Progress)
	}

	// duplicate single insert must also be refused, without touching counters
	if _, err := models.CreateInventoryRecord(ctx, &models.NewInventoryRecord{
		TaskId:       task.ID,
		AssetId:      assetIds[0],
		ActualStatus: models.AssetStatusInUse,
		Result:       models.InventoryCheckResultDamaged,
	}); !utils.IsDuplicateCheck(err) {
		t.Fatalf("expected DuplicateCheck, got %v", err)
	}
	task, _ = models.GetInventoryTask(ctx, task.ID)
	if task.CheckedAssets != 10 || task.DamagedAssets != 0 {
		t.Fatalf("counters moved on rejected duplicate: checked=%d damaged=%d",
			task.CheckedAssets, task.DamagedAssets)
	}

	// delete guards
	if err := models.DeleteInventoryTask(ctx, task.ID); !utils.IsStateConflict(err) {
		t.Fatalf("expected StateConflict deleting in-progress task, got %v", err)
	}

	task, err = models.CompleteInventoryTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("CompleteInventoryTask: %v", err)
	}
	if task.CurrentStatus != models.InventoryTaskStatusCompleted {
		t.Fatalf("expected Completed, got %s", task.CurrentStatus)
	}
	if task.EndDate == nil {
		t.Fatalf("expected end_date to be set")
	}

	// completed tasks refuse edits, records and deletion
	if _, err := models.CompleteInventoryTask(ctx, task.ID); !utils.IsStateConflict(err) {
		t.Fatalf("expected StateConflict on double complete, got %v", err)
	}
	name := "Renamed"
	if _, err := models.UpdateInventoryTask(ctx, task.ID, &models.UpdateInventoryTaskInput{TaskName: &name}); !utils.IsStateConflict(err) {
		t.Fatalf("expected StateConflict editing completed task, got %v", err)
	}
	if err := models.DeleteInventoryTask(ctx, task.ID); !utils.IsStateConflict(err) {
		t.Fatalf("expected StateConflict deleting completed task, got %v", err)
	}

	report, err := reports.GetInventoryTaskReport(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetInventoryTaskReport: %v", err)
	}
	if report.Summary.CheckedAssets != 10 || report.Summary.UncheckedAssets != 0 {
		t.Fatalf("unexpected summary: checked=%d unchecked=%d",
			report.Summary.CheckedAssets, report.Summary.UncheckedAssets)
	}
	if len(report.Records) != 10 {
		t.Fatalf("expected 10 records in report, got %d", len(report.Records))
	}
	var laptopRow, strayRow *reports.InventoryGroupStat
	for _, row := range report.CategoryStats {
		switch {
		case row.GroupId == category.ID:
			laptopRow = row
		case row.GroupName == "Out of Scope":
			strayRow = row
		case row.GroupId == otherCategory.ID:
			t.Fatalf("out-of-scope category must not get its own group row")
		}
	}
	if laptopRow == nil {
		t.Fatalf("category row missing from report")
	}
	if laptopRow.TotalAssets != 10 || laptopRow.CheckedAssets != 9 ||
		laptopRow.NormalAssets != 8 || laptopRow.DeficitAssets != 1 || laptopRow.SurplusAssets != 0 {
		t.Fatalf("unexpected category row: %+v", laptopRow)
	}
	if strayRow == nil {
		t.Fatalf("out-of-scope row missing from report")
	}
	if strayRow.CheckedAssets != 1 || strayRow.SurplusAssets != 1 {
		t.Fatalf("unexpected out-of-scope row: %+v", strayRow)
	}

	// group rows sum back to the summary counters
	var checkedSum int
	for _, row := range report.CategoryStats {
		checkedSum += row.CheckedAssets
	}
	if checkedSum != report.Summary.CheckedAssets {
		t.Fatalf("category rows sum to %d, summary says %d", checkedSum, report.Summary.CheckedAssets)
	}
}

// A pending task with no records deletes cleanly; a fresh task reports zeros.
func TestStocktakePendingDeleteAndEmptyProgress(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := setupIntegration(t)

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Empty Scope Co",
		Email: "owner@empty.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	task, err := models.CreateInventoryTask(ctx, &models.NewInventoryTask{
		TaskName: "Nothing To Count",
		TaskType: models.InventoryTaskTypeFull,
	})
	if err != nil {
		t.Fatalf("CreateInventoryTask: %v", err)
	}
	if task.TotalAssets != 0 {
		t.Fatalf("expected total_assets=0, got %d", task.TotalAssets)
	}
	if !task.Progress.Equal(decimal.Zero) {
		t.Fatalf("expected empty-scope progress=0, got %s", task.Progress)
	}

	// a task with no records still renders a zero-valued report
	report, err := reports.GetInventoryTaskReport(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetInventoryTaskReport: %v", err)
	}
	if report.Summary.CheckedAssets != 0 || len(report.Records) != 0 {
		t.Fatalf("expected empty report, got checked=%d records=%d",
			report.Summary.CheckedAssets, len(report.Records))
	}

	// planned dates may be edited while the task is not completed
	plannedStart := models.MyDateString(time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC))
	plannedEnd := models.MyDateString(time.Date(2026, 9, 5, 9, 0, 0, 0, time.UTC))
	task, err = models.UpdateInventoryTask(ctx, task.ID, &models.UpdateInventoryTaskInput{
		StartDate: &plannedStart,
		EndDate:   &plannedEnd,
	})
	if err != nil {
		t.Fatalf("UpdateInventoryTask(dates): %v", err)
	}
	if task.StartDate == nil || task.EndDate == nil {
		t.Fatalf("expected planned dates to be stored")
	}

	if err := models.DeleteInventoryTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteInventoryTask(pending): %v", err)
	}
	if _, err := models.GetInventoryTask(ctx, task.ID); !utils.IsNotFound(err) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}

	// creation accepts planned dates up front
	planned, err := models.CreateInventoryTask(ctx, &models.NewInventoryTask{
		TaskName:  "Planned Count",
		TaskType:  models.InventoryTaskTypeFull,
		StartDate: &plannedStart,
		EndDate:   &plannedEnd,
	})
	if err != nil {
		t.Fatalf("CreateInventoryTask(dates): %v", err)
	}
	if planned.StartDate == nil || planned.EndDate == nil {
		t.Fatalf("expected planned dates on created task")
	}

	// tasks must carry a creator identity
	ctxNoUser := utils.SetBusinessIdInContext(context.Background(), biz.ID.String())
	if _, err := models.CreateInventoryTask(ctxNoUser, &models.NewInventoryTask{
		TaskName: "Anonymous Count",
		TaskType: models.InventoryTaskTypeFull,
	}); !utils.IsValidation(err) {
		t.Fatalf("expected ValidationError without creator, got %v", err)
	}
}

func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "assets_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test Operator")
	return ctx
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("assets-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("assets-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=assets_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
