package repo

import (
	"gorm.io/gorm"

	"product-user-services/internal/domain"
)

func MigrateProducts(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Product{}, &domain.OwnerSuspension{})
}

func MigrateUsers(db *gorm.DB) error {
	return db.AutoMigrate(&domain.User{}, &domain.CascadeJob{})
}
