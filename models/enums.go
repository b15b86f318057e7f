package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

type AssetStatus string

const (
	AssetStatusActive      AssetStatus = "Active"
	AssetStatusInUse       AssetStatus = "InUse"
	AssetStatusIdle        AssetStatus = "Idle"
	AssetStatusUnderRepair AssetStatus = "UnderRepair"
	AssetStatusRetired     AssetStatus = "Retired"
)

// convert input to enum type
func (t *AssetStatus) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("asset status must be string")
	}
	switch str {
	case "Active":
		*t = AssetStatusActive
	case "InUse":
		*t = AssetStatusInUse
	case "Idle":
		*t = AssetStatusIdle
	case "UnderRepair":
		*t = AssetStatusUnderRepair
	case "Retired":
		*t = AssetStatusRetired
	default:
		return errors.New("invalid asset status")
	}
	return nil
}

type InventoryTaskType string

const (
	InventoryTaskTypeFull         InventoryTaskType = "Full"
	InventoryTaskTypeByCategory   InventoryTaskType = "ByCategory"
	InventoryTaskTypeByDepartment InventoryTaskType = "ByDepartment"
)

func (t *InventoryTaskType) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("inventory task type must be string")
	}
	switch str {
	case "Full":
		*t = InventoryTaskTypeFull
	case "ByCategory":
		*t = InventoryTaskTypeByCategory
	case "ByDepartment":
		*t = InventoryTaskTypeByDepartment
	default:
		return errors.New("invalid inventory task type")
	}
	return nil
}

type InventoryTaskStatus string

const (
	InventoryTaskStatusPending    InventoryTaskStatus = "Pending"
	InventoryTaskStatusInProgress InventoryTaskStatus = "InProgress"
	InventoryTaskStatusCompleted  InventoryTaskStatus = "Completed"
)

func (t *InventoryTaskStatus) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("inventory task status must be string")
	}
	switch str {
	case "Pending":
		*t = InventoryTaskStatusPending
	case "InProgress":
		*t = InventoryTaskStatusInProgress
	case "Completed":
		*t = InventoryTaskStatusCompleted
	default:
		return errors.New("invalid inventory task status")
	}
	return nil
}

type InventoryCheckResult string

const (
	InventoryCheckResultNormal  InventoryCheckResult = "Normal"
	InventoryCheckResultSurplus InventoryCheckResult = "Surplus"
	InventoryCheckResultDeficit InventoryCheckResult = "Deficit"
	InventoryCheckResultDamaged InventoryCheckResult = "Damaged"
)

func (t *InventoryCheckResult) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("inventory check result must be string")
	}
	switch str {
	case "Normal":
		*t = InventoryCheckResultNormal
	case "Surplus":
		*t = InventoryCheckResultSurplus
	case "Deficit":
		*t = InventoryCheckResultDeficit
	case "Damaged":
		*t = InventoryCheckResultDamaged
	default:
		return errors.New("invalid inventory check result")
	}
	return nil
}

// counterColumn maps a check result to the task counter column it increments.
func (t InventoryCheckResult) counterColumn() string {
	switch t {
	case InventoryCheckResultNormal:
		return "normal_assets"
	case InventoryCheckResultSurplus:
		return "surplus_assets"
	case InventoryCheckResultDeficit:
		return "deficit_assets"
	case InventoryCheckResultDamaged:
		return "damaged_assets"
	}
	return ""
}

type MyDateString time.Time

func (t MyDateString) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Time(t).Format("2006-01-02T15:04:05"))), nil
}

// Parse the string into time.Time object
func (t *MyDateString) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("MyDateString must be string")
	}

	localTime, err := time.Parse("2006-01-02T15:04:05", str)
	if err != nil {
		return errors.New("error parsing datetime")
	}
	*t = MyDateString(localTime)

	return nil
}

func (t *MyDateString) StartOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "Asia/Yangon"
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		0, 0, 0, 0,
		location,
	)

	utcTime := localTimeInZone.In(time.UTC)
	*t = MyDateString(utcTime)

	return nil
}

func (t *MyDateString) EndOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "Asia/Yangon"
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		23, 59, 59, 0,
		location,
	)

	utcTime := localTimeInZone.In(time.UTC)
	*t = MyDateString(utcTime)

	return nil
}
