package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"mangaapi/bizerror"
	"mangaapi/idgen"
	"mangaapi/persistence"
	"mangaapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var (
	idWorker *sonyflake.Sonyflake
)

func init() {
	idWorker = idgen.NewWorker()
}

// UserCreatedHook runs after a user has been stored.
type UserCreatedHook func(ctx context.Context, u *User) error

var UserCreatedHooks []UserCreatedHook

var (
	UpdateBasicAuthSecretFunc = UpdateBasicAuthSecret
	QueryUsersFunc            = QueryUsers
	CreateUserFunc            = CreateUser
	UpdateUserFunc            = UpdateUser
	FindUserFunc              = FindUser
)

func HashSha256(raw string) string {
	h := sha256.New()
	h.Write([]byte(raw))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

func UpdateBasicAuthSecret(u *BasicAuthUpdating, sec *session.Session) error {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	user := User{}
	if err := db.Model(&User{}).Where(&User{ID: sec.Identity.ID, Secret: HashSha256(u.OriginalSecret)}).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bizerror.ErrInvalidPassword
		}
		return err
	}
	return db.Model(&User{}).Where(&User{ID: sec.Identity.ID}).Update("secret", HashSha256(u.NewSecret)).Error
}

func QueryUsers(sec *session.Session) (*[]UserInfo, error) {
	if !sec.Authenticated() {
		return nil, bizerror.ErrUnauthenticated
	}
	users := []UserInfo{}
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Model(&User{}).Order("id ASC").Scan(&users).Error; err != nil {
		return nil, err
	}
	return &users, nil
}

// FindUser loads a user by id, secret excluded.
func FindUser(id types.ID, sec *session.Session) (*UserInfo, error) {
	user := UserInfo{}
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Model(&User{}).Where("id = ?", id).Scan(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func CreateUser(c *UserCreation, sec *session.Session) (*UserInfo, error) {
	if !sec.IsSuperuser() {
		return nil, bizerror.ErrForbidden
	}

	user := User{ID: idgen.NextID(idWorker), Name: c.Name, Nickname: c.Nickname, Secret: HashSha256(c.Secret),
		Profile: DefaultProfile, ProfileUpdateTime: types.CurrentTimestamp()}
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Create(&user).Error; err != nil {
		if persistence.IsDuplicateKeyError(err) {
			return nil, &bizerror.ErrBadParam{Cause: errors.New("user '" + c.Name + "' already exists")}
		}
		return nil, err
	}
	for _, hook := range UserCreatedHooks {
		if err := hook(sec.Ctx(), &user); err != nil {
			logrus.Warnf("post creation hook failed for user %d: %v", user.ID, err)
		}
	}
	return &UserInfo{ID: user.ID, Name: user.Name, Nickname: user.Nickname, Profile: user.Profile}, nil
}

func UpdateUser(userId types.ID, c *UserUpdation, sec *session.Session) error {
	if !sec.IsSuperuser() && userId != sec.Identity.ID {
		return bizerror.ErrForbidden
	}

	return persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		user := User{}
		if err := tx.Where("id = ?", userId).First(&user).Error; err != nil {
			return err
		}
		return tx.Model(&User{}).Where("id = ?", userId).Update("nickname", c.Nickname).Error
	})
}
