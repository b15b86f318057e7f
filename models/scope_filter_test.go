package models

import (
	"context"
	"testing"

	"github.com/mmdatafocus/assets_backend/utils"
)

func TestScopeFilterValidate_TypePairingRules(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		taskType InventoryTaskType
		filter   ScopeFilter
		wantErr  bool
	}{
		{
			name:     "full with no filters",
			taskType: InventoryTaskTypeFull,
			filter:   ScopeFilter{},
			wantErr:  false,
		},
		{
			name:     "full rejects category ids",
			taskType: InventoryTaskTypeFull,
			filter:   ScopeFilter{CategoryIds: []int{1}},
			wantErr:  true,
		},
		{
			name:     "full rejects department ids",
			taskType: InventoryTaskTypeFull,
			filter:   ScopeFilter{DepartmentIds: []int{1}},
			wantErr:  true,
		},
		{
			name:     "by-category requires category ids",
			taskType: InventoryTaskTypeByCategory,
			filter:   ScopeFilter{},
			wantErr:  true,
		},
		{
			name:     "by-category rejects department ids",
			taskType: InventoryTaskTypeByCategory,
			filter:   ScopeFilter{CategoryIds: []int{1}, DepartmentIds: []int{2}},
			wantErr:  true,
		},
		{
			name:     "by-department requires department ids",
			taskType: InventoryTaskTypeByDepartment,
			filter:   ScopeFilter{},
			wantErr:  true,
		},
		{
			name:     "by-department rejects category ids",
			taskType: InventoryTaskTypeByDepartment,
			filter:   ScopeFilter{DepartmentIds: []int{1}, CategoryIds: []int{2}},
			wantErr:  true,
		},
		{
			name:     "unknown task type",
			taskType: InventoryTaskType("Weekly"),
			filter:   ScopeFilter{},
			wantErr:  true,
		},
		{
			name:     "full rejects invalid narrowing status",
			taskType: InventoryTaskTypeFull,
			filter:   ScopeFilter{AssetStatuses: []AssetStatus{"Broken"}},
			wantErr:  true,
		},
		{
			name:     "full accepts valid narrowing",
			taskType: InventoryTaskTypeFull,
			filter: ScopeFilter{
				AssetStatuses:    []AssetStatus{AssetStatusInUse, AssetStatusIdle},
				LocationContains: "floor",
			},
			wantErr: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.filter.validate(ctx, "biz-1", tc.taskType)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !utils.IsValidation(err) {
					t.Fatalf("expected ValidationError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTaskProgress(t *testing.T) {
	cases := []struct {
		checked int
		total   int
		want    string
	}{
		{0, 0, "0"},
		{5, 0, "0"},
		{0, 10, "0"},
		{10, 10, "100"},
		{1, 3, "33.3"},
		{2, 3, "66.7"},
		{7, 11, "63.6"},
	}
	for _, tc := range cases {
		if got := taskProgress(tc.checked, tc.total).String(); got != tc.want {
			t.Errorf("taskProgress(%d, %d) = %s, want %s", tc.checked, tc.total, got, tc.want)
		}
	}
}

func TestCheckResultCounterColumn(t *testing.T) {
	cases := map[InventoryCheckResult]string{
		InventoryCheckResultNormal:  "normal_assets",
		InventoryCheckResultSurplus: "surplus_assets",
		InventoryCheckResultDeficit: "deficit_assets",
		InventoryCheckResultDamaged: "damaged_assets",
		InventoryCheckResult("Bad"): "",
	}
	for result, want := range cases {
		if got := result.counterColumn(); got != want {
			t.Errorf("counterColumn(%s) = %q, want %q", result, got, want)
		}
	}
}
