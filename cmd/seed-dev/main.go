package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/mmdatafocus/assets_backend/config"
	"github.com/mmdatafocus/assets_backend/models"
	"github.com/mmdatafocus/assets_backend/utils"
	"github.com/shopspring/decimal"
)

// Seeds a throwaway business with a small register and prints a dev token.
// Development only; never run against a shared database.
func main() {
	godotenv.Load()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if err := models.MigrateTable(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	db := config.GetDB()

	business := models.Business{
		Name:     "Dev Assets Co",
		Email:    "dev@example.com",
		Timezone: "Asia/Yangon",
		IsActive: utils.NewTrue(),
	}
	if err := db.Create(&business).Error; err != nil {
		log.Fatalf("seed business failed: %v", err)
	}
	businessId := business.ID.String()

	user := models.User{
		BusinessId: businessId,
		Username:   "dev",
		Name:       "Dev Operator",
		IsActive:   utils.NewTrue(),
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("seed user failed: %v", err)
	}

	categories := []models.AssetCategory{
		{BusinessId: businessId, Name: "Laptops", IsActive: utils.NewTrue()},
		{BusinessId: businessId, Name: "Monitors", IsActive: utils.NewTrue()},
		{BusinessId: businessId, Name: "Furniture", IsActive: utils.NewTrue()},
	}
	if err := db.Create(&categories).Error; err != nil {
		log.Fatalf("seed categories failed: %v", err)
	}

	departments := []models.Department{
		{BusinessId: businessId, Name: "Engineering", IsActive: utils.NewTrue()},
		{BusinessId: businessId, Name: "Finance", IsActive: utils.NewTrue()},
	}
	if err := db.Create(&departments).Error; err != nil {
		log.Fatalf("seed departments failed: %v", err)
	}

	statuses := []models.AssetStatus{
		models.AssetStatusActive,
		models.AssetStatusInUse,
		models.AssetStatusIdle,
		models.AssetStatusUnderRepair,
	}
	for i := 1; i <= 12; i++ {
		asset := models.Asset{
			BusinessId:   businessId,
			Name:         fmt.Sprintf("Asset %02d", i),
			Tag:          fmt.Sprintf("DEV-%04d", i),
			CategoryId:   categories[i%len(categories)].ID,
			DepartmentId: departments[i%len(departments)].ID,
			Status:       statuses[i%len(statuses)],
			Location:     fmt.Sprintf("Floor %d", 1+i%3),
			Cost:         decimal.NewFromInt(int64(100 * i)),
			IsActive:     utils.NewTrue(),
		}
		if err := db.Create(&asset).Error; err != nil {
			log.Fatalf("seed asset failed: %v", err)
		}
	}

	token, err := utils.JwtGenerate(user.ID, businessId, user.Name)
	if err != nil {
		log.Fatalf("token generation failed: %v", err)
	}

	fmt.Println("business_id:", businessId)
	fmt.Println("token:", token)
}
