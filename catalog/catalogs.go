package catalog

import (
	"context"
	"errors"
	"mangaapi/bizerror"
	"mangaapi/client/s3"
	"mangaapi/dac"
	"mangaapi/enforce"
	"mangaapi/idgen"
	"mangaapi/persistence"
	"mangaapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var idWorker *sonyflake.Sonyflake

func init() {
	idWorker = idgen.NewWorker()
}

var (
	CreateMangaFunc   = CreateManga
	QueryMangaFunc    = QueryManga
	DetailMangaFunc   = DetailManga
	UpdateMangaFunc   = UpdateManga
	DeleteMangaFunc   = DeleteManga
	CreateChapterFunc = CreateChapter
	QueryChaptersFunc = QueryChapters
	DetailChapterFunc = DetailChapter
	UpdateChapterFunc = UpdateChapter
	DeleteChapterFunc = DeleteChapter
)

// RegisterTargets makes manga and chapters resolvable by the enforcement guards.
func RegisterTargets(registry *enforce.Registry) {
	registry.Register(TypeManga, LoadManga)
	registry.Register(TypeChapter, LoadChapter)
}

func LoadManga(ctx context.Context, id string) (enforce.Resource, error) {
	mangaID, err := types.ParseID(id)
	if err != nil {
		return nil, bizerror.ErrNotFound
	}
	m := Manga{}
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Where("id = ?", mangaID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func LoadChapter(ctx context.Context, id string) (enforce.Resource, error) {
	chapterID, err := types.ParseID(id)
	if err != nil {
		return nil, bizerror.ErrNotFound
	}
	c := Chapter{}
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Where("id = ?", chapterID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateManga records the creator as owner of the new manga.
func CreateManga(c *MangaCreation, sec *session.Session) (*Manga, error) {
	if !sec.Authenticated() {
		return nil, bizerror.ErrUnauthenticated
	}
	now := types.CurrentTimestamp()
	m := &Manga{ID: idgen.NextID(idWorker), Title: c.Title, Description: c.Description, Erotico: c.Erotico,
		CreatorID: sec.Identity.ID, CreateTime: now, UpdateTime: now}
	err := persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		_, err := dac.SetOwnerTx(tx, sec.Identity.ID, m.DACTarget())
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// QueryManga lists manga by title, erotico ones only when includeNSFW.
func QueryManga(q *MangaQuery, includeNSFW bool, sec *session.Session) (*PagedManga, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Model(&Manga{})
	if !includeNSFW {
		db = db.Where("erotico = ?", false)
	}
	if q.Keyword != "" {
		db = db.Where("title LIKE ?", "%"+q.Keyword+"%")
	}
	var total uint64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	list := []Manga{}
	if err := db.Order("create_time DESC").Offset(q.Offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		list[i].HasCover = list[i].CoverKey != ""
	}
	return &PagedManga{List: list, Total: total}, nil
}

// DetailManga counts a view.
func DetailManga(id types.ID, sec *session.Session) (*Manga, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Ctx())
	if err := db.Model(&Manga{}).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		return nil, err
	}
	m := Manga{}
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	m.HasCover = m.CoverKey != ""
	return &m, nil
}

// UpdateManga propagates a raised erotico flag to the chapters.
func UpdateManga(id types.ID, c *MangaUpdation, sec *session.Session) (*Manga, error) {
	m := Manga{}
	err := persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
			return err
		}
		changes := map[string]interface{}{"title": c.Title, "description": c.Description, "update_time": types.CurrentTimestamp()}
		if c.Erotico != nil {
			changes["erotico"] = *c.Erotico
		}
		if err := tx.Model(&Manga{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return err
		}
		if c.Erotico != nil && *c.Erotico {
			if err := tx.Model(&Chapter{}).Where("manga_id = ?", id).UpdateColumn("erotico", true).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).First(&m).Error
	})
	if err != nil {
		return nil, err
	}
	m.HasCover = m.CoverKey != ""
	return &m, nil
}

// DeleteManga removes the manga with its chapters, their owners and object grants. The cover is removed last,
// best effort.
func DeleteManga(id types.ID, sec *session.Session) error {
	m := Manga{}
	err := persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
			return err
		}
		var chapters []Chapter
		if err := tx.Where("manga_id = ?", id).Find(&chapters).Error; err != nil {
			return err
		}
		for i := range chapters {
			if err := dac.DeleteTargetTx(tx, chapters[i].DACTarget()); err != nil {
				return err
			}
		}
		if err := tx.Where("manga_id = ?", id).Delete(&Chapter{}).Error; err != nil {
			return err
		}
		if err := dac.DeleteTargetTx(tx, m.DACTarget()); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Manga{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if m.CoverKey != "" {
		if err := s3.DeleteObjectFunc(sec.Ctx(), m.CoverKey); err != nil {
			logrus.Warnf("cover %s of deleted manga %d not removed: %v", m.CoverKey, id, err)
		}
	}
	return nil
}

// CreateChapter inherits the erotico flag of the manga and records the creator as owner.
func CreateChapter(mangaID types.ID, c *ChapterCreation, sec *session.Session) (*Chapter, error) {
	if !sec.Authenticated() {
		return nil, bizerror.ErrUnauthenticated
	}
	var chapter *Chapter
	err := persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Transaction(func(tx *gorm.DB) error {
		m := Manga{}
		if err := tx.Where("id = ?", mangaID).First(&m).Error; err != nil {
			return err
		}
		now := types.CurrentTimestamp()
		chapter = &Chapter{ID: idgen.NextID(idWorker), MangaID: mangaID, Number: c.Number, Title: c.Title,
			Erotico: c.Erotico || m.Erotico, CreatorID: sec.Identity.ID, CreateTime: now, UpdateTime: now}
		if err := tx.Create(chapter).Error; err != nil {
			return err
		}
		_, err := dac.SetOwnerTx(tx, sec.Identity.ID, chapter.DACTarget())
		return err
	})
	if err != nil {
		return nil, err
	}
	return chapter, nil
}

func QueryChapters(mangaID types.ID, includeNSFW bool, sec *session.Session) ([]Chapter, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Where("manga_id = ?", mangaID)
	if !includeNSFW {
		db = db.Where("erotico = ?", false)
	}
	chapters := []Chapter{}
	if err := db.Order("number ASC").Find(&chapters).Error; err != nil {
		return nil, err
	}
	return chapters, nil
}

// DetailChapter counts a view.
func DetailChapter(id types.ID, sec *session.Session) (*Chapter, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Ctx())
	if err := db.Model(&Chapter{}).Where("id = ?", id).UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		return nil, err
	}
	c := Chapter{}
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func UpdateChapter(id types.ID, c *ChapterUpdation, sec *session.Session) (*Chapter, error) {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Ctx())
	result := db.Model(&Chapter{}).Where("id = ?", id).
		Updates(map[string]interface{}{"number": c.Number, "title": c.Title, "update_time": types.CurrentTimestamp()})
	if result.Error != nil {
		return nil, result.Error
	}
	chapter := Chapter{}
	if err := db.Where("id = ?", id).First(&chapter).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

func DeleteChapter(id types.ID, sec *session.Session) error {
	return persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Transaction(func(tx *gorm.DB) error {
		chapter := Chapter{ID: id}
		if err := dac.DeleteTargetTx(tx, chapter.DACTarget()); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Chapter{}).Error
	})
}
