package dac

import (
	"context"
	"errors"
	"mangaapi/account"
	"mangaapi/bizerror"
	"mangaapi/idgen"
	"mangaapi/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var idWorker *sonyflake.Sonyflake

func init() {
	idWorker = idgen.NewWorker()
}

// GormStore is the relational Store backed by persistence.ActiveDataSourceManager.
type GormStore struct {
	dsm *persistence.DataSourceManager
}

func NewGormStore(dsm *persistence.DataSourceManager) *GormStore {
	return &GormStore{dsm: dsm}
}

func (s *GormStore) db(ctx context.Context) *gorm.DB {
	return s.dsm.GormDB(ctx)
}

func (s *GormStore) FindPermission(ctx context.Context, codename string) (*Permission, error) {
	if codename == "" {
		return nil, nil
	}
	return findPermission(s.db(ctx), codename)
}

func (s *GormStore) GetOrCreatePermission(ctx context.Context, codename string) (*Permission, error) {
	return GetOrCreatePermissionTx(s.db(ctx), codename)
}

// GetOrCreatePermissionTx is GetOrCreatePermission inside an outer transaction.
func GetOrCreatePermissionTx(tx *gorm.DB, codename string) (*Permission, error) {
	if !validCodename(codename) {
		return nil, bizerror.ErrUnknownPermission
	}
	p, err := findPermission(tx, codename)
	if err != nil || p != nil {
		return p, err
	}
	p = &Permission{ID: idgen.NextID(idWorker), Codename: codename, DisplayName: codename, CreateTime: types.CurrentTimestamp()}
	if err := tx.Create(p).Error; err != nil {
		if persistence.IsDuplicateKeyError(err) {
			return findPermission(tx, codename)
		}
		return nil, err
	}
	return p, nil
}

func findPermission(db *gorm.DB, codename string) (*Permission, error) {
	p := Permission{}
	if err := db.Where("codename = ?", codename).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) UpsertGrant(ctx context.Context, actor Actor, target Target, codename string, allow bool) (*AccessGrant, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if target.Type == "" || target.ID == "" {
		return nil, bizerror.ErrUnknownTargetType
	}
	db := s.db(ctx)
	perm, err := GetOrCreatePermissionTx(db, codename)
	if err != nil {
		return nil, err
	}

	now := types.CurrentTimestamp()
	g := &AccessGrant{ID: idgen.NextID(idWorker), UserID: actor.UserID, GroupID: actor.GroupID,
		TargetType: target.Type, TargetID: target.ID, PermissionID: perm.ID, Allow: allow, CreateTime: now, UpdateTime: now}

	existing, err := findGrant(db, g)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		err = db.Create(g).Error
		if err == nil {
			g.Codename = perm.Codename
			return g, nil
		}
		if !persistence.IsDuplicateKeyError(err) {
			return nil, err
		}
		// lost the race against a concurrent upsert on the same key, last writer wins
		if existing, err = findGrant(db, g); err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errors.New("grant disappeared after duplicate key conflict")
		}
	}

	if err := db.Model(&AccessGrant{}).Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"allow": allow, "update_time": now}).Error; err != nil {
		return nil, err
	}
	existing.Allow = allow
	existing.UpdateTime = now
	existing.Codename = perm.Codename
	return existing, nil
}

func findGrant(db *gorm.DB, key *AccessGrant) (*AccessGrant, error) {
	g := AccessGrant{}
	err := db.Where("user_id = ? AND group_id = ? AND target_type = ? AND target_id = ? AND permission_id = ?",
		key.UserID, key.GroupID, key.TargetType, key.TargetID, key.PermissionID).First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (s *GormStore) ListGrants(ctx context.Context, q GrantQuery) ([]AccessGrant, error) {
	db := s.db(ctx)
	tx := db.Model(&AccessGrant{})
	switch {
	case q.UserID != 0 && len(q.GroupIDs) > 0:
		tx = tx.Where("user_id = ? OR group_id IN (?)", q.UserID, q.GroupIDs)
	case q.UserID != 0:
		tx = tx.Where("user_id = ?", q.UserID)
	case len(q.GroupIDs) > 0:
		tx = tx.Where("group_id IN (?)", q.GroupIDs)
	}
	if q.TargetType != "" {
		tx = tx.Where("target_type = ?", q.TargetType)
	}
	if len(q.TargetIDs) > 0 {
		tx = tx.Where("target_id IN (?)", q.TargetIDs)
	}
	if q.PermissionID != 0 {
		tx = tx.Where("permission_id = ?", q.PermissionID)
	}
	if q.Allow != nil {
		tx = tx.Where("allow = ?", *q.Allow)
	}

	grants := []AccessGrant{}
	if err := tx.Order("id ASC").Find(&grants).Error; err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return grants, nil
	}

	var permIDs []types.ID
	for _, g := range grants {
		permIDs = append(permIDs, g.PermissionID)
	}
	var perms []Permission
	if err := db.Where("id IN (?)", permIDs).Find(&perms).Error; err != nil {
		return nil, err
	}
	codenames := map[types.ID]string{}
	for _, p := range perms {
		codenames[p.ID] = p.Codename
	}
	for i := range grants {
		grants[i].Codename = codenames[grants[i].PermissionID]
	}
	return grants, nil
}

// DeleteGrant returns nil when the grant does not exist.
func (s *GormStore) DeleteGrant(ctx context.Context, id types.ID) (*AccessGrant, error) {
	var deleted *AccessGrant
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		g := AccessGrant{}
		if err := tx.Where("id = ?", id).First(&g).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&AccessGrant{}).Error; err != nil {
			return err
		}
		deleted = &g
		return nil
	})
	return deleted, err
}

// DeleteGroupGrantsTx removes all grants of a group, it is registered as an account.GroupDeleteHook.
func DeleteGroupGrantsTx(tx *gorm.DB, groupID types.ID) error {
	return tx.Where("group_id = ?", groupID).Delete(&AccessGrant{}).Error
}

// DeleteTargetTx removes the object specific owners and grants of a deleted object. Wildcard grants are kept.
func DeleteTargetTx(tx *gorm.DB, target Target) error {
	if target.IsWildcard() {
		return nil
	}
	if err := tx.Where("target_type = ? AND target_id = ?", target.Type, target.ID).Delete(&Owner{}).Error; err != nil {
		return err
	}
	return tx.Where("target_type = ? AND target_id = ?", target.Type, target.ID).Delete(&AccessGrant{}).Error
}

func (s *GormStore) SetOwner(ctx context.Context, userID types.ID, target Target) (*Owner, error) {
	if userID == 0 {
		return nil, bizerror.ErrMalformedActor
	}
	if target.Type == "" || target.ID == "" || target.IsWildcard() {
		return nil, bizerror.ErrUnknownTargetType
	}
	return SetOwnerTx(s.db(ctx), userID, target)
}

// SetOwnerTx records ownership inside an outer transaction, it is idempotent.
func SetOwnerTx(tx *gorm.DB, userID types.ID, target Target) (*Owner, error) {
	o := &Owner{ID: idgen.NextID(idWorker), UserID: userID, TargetType: target.Type, TargetID: target.ID, CreateTime: types.CurrentTimestamp()}
	existing, err := findOwner(tx, userID, target)
	if err != nil || existing != nil {
		return existing, err
	}
	if err := tx.Create(o).Error; err != nil {
		if persistence.IsDuplicateKeyError(err) {
			return findOwner(tx, userID, target)
		}
		return nil, err
	}
	return o, nil
}

func findOwner(db *gorm.DB, userID types.ID, target Target) (*Owner, error) {
	o := Owner{}
	err := db.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target.Type, target.ID).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (s *GormStore) RemoveOwner(ctx context.Context, userID types.ID, target Target) (bool, error) {
	result := s.db(ctx).Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target.Type, target.ID).Delete(&Owner{})
	return result.RowsAffected > 0, result.Error
}

func (s *GormStore) IsOwner(ctx context.Context, userID types.ID, target Target) (bool, error) {
	var count int
	err := s.db(ctx).Model(&Owner{}).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userID, target.Type, target.ID).Count(&count).Error
	return count > 0, err
}

func (s *GormStore) GroupIDsOfUser(ctx context.Context, userID types.ID) ([]types.ID, error) {
	var ids []uint64
	if err := s.db(ctx).Model(&account.GroupMembership{}).Where("user_id = ?", userID).Pluck("group_id", &ids).Error; err != nil {
		return nil, err
	}
	result := make([]types.ID, 0, len(ids))
	for _, id := range ids {
		result = append(result, types.ID(id))
	}
	return result, nil
}

func (s *GormStore) ActorExists(ctx context.Context, actor Actor) (bool, error) {
	if err := actor.Validate(); err != nil {
		return false, err
	}
	var count int
	var err error
	if actor.IsGroup() {
		err = s.db(ctx).Model(&account.Group{}).Where("id = ?", actor.GroupID).Count(&count).Error
	} else {
		err = s.db(ctx).Model(&account.User{}).Where("id = ?", actor.UserID).Count(&count).Error
	}
	return count > 0, err
}
