package account

import (
	"context"
	"errors"
	"mangaapi/persistence"
	"os"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

const AdminUserID types.ID = 1

// DefaultSecurityConfiguration makes sure the initial superuser exists.
func DefaultSecurityConfiguration() error {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	return db.Transaction(func(tx *gorm.DB) error {
		admin := User{}
		err := tx.Model(&User{}).Where("id = ?", AdminUserID).First(&admin).Error
		if err == nil {
			if !admin.Superuser {
				return tx.Model(&User{}).Where("id = ?", AdminUserID).Update("superuser", true).Error
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		initialAdminPassword := os.ExpandEnv("${INITIAL_ADMIN_PASSWORD}")
		if initialAdminPassword == "" {
			initialAdminPassword = "admin123"
		}
		return tx.Create(&User{ID: AdminUserID, Name: "admin", Secret: HashSha256(initialAdminPassword), Superuser: true,
			Profile: DefaultProfile, ProfileUpdateTime: types.CurrentTimestamp()}).Error
	})
}
