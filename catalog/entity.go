package catalog

import (
	"mangaapi/dac"

	"github.com/fundwit/go-commons/types"
)

const (
	TypeManga   dac.TargetType = "manga"
	TypeChapter dac.TargetType = "chapter"
)

type Manga struct {
	ID          types.ID `json:"id"`
	Title       string   `json:"title" sql:"type:VARCHAR(255) NOT NULL"`
	Description string   `json:"description" sql:"type:TEXT"`
	Erotico     bool     `json:"erotico"`
	Views       uint64   `json:"views"`
	CoverKey    string   `json:"-"`
	HasCover    bool     `json:"hasCover" gorm:"-"`

	CreatorID  types.ID        `json:"creatorId"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

func (m *Manga) TableName() string {
	return "catalog_manga"
}

func (m *Manga) DACTarget() dac.Target {
	return dac.Target{Type: TypeManga, ID: m.ID.String()}
}

func (m *Manga) NSFW() bool {
	return m.Erotico
}

type Chapter struct {
	ID      types.ID `json:"id"`
	MangaID types.ID `json:"mangaId" gorm:"index:idx_chapter_manga"`
	Number  int      `json:"number"`
	Title   string   `json:"title" sql:"type:VARCHAR(255)"`
	Erotico bool     `json:"erotico"`
	Views   uint64   `json:"views"`

	CreatorID  types.ID        `json:"creatorId"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
	UpdateTime types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

func (c *Chapter) TableName() string {
	return "catalog_chapters"
}

func (c *Chapter) DACTarget() dac.Target {
	return dac.Target{Type: TypeChapter, ID: c.ID.String()}
}

func (c *Chapter) NSFW() bool {
	return c.Erotico
}

type MangaCreation struct {
	Title       string `json:"title" binding:"required,lte=255"`
	Description string `json:"description" binding:"lte=4000"`
	Erotico     bool   `json:"erotico"`
}

type MangaUpdation struct {
	Title       string `json:"title" binding:"required,lte=255"`
	Description string `json:"description" binding:"lte=4000"`
	Erotico     *bool  `json:"erotico"`
}

type MangaQuery struct {
	Keyword string `form:"keyword"`
	Limit   int    `form:"limit" binding:"omitempty,gte=1,lte=100"`
	Offset  int    `form:"offset" binding:"omitempty,gte=0"`
}

type PagedManga struct {
	List  []Manga `json:"list"`
	Total uint64  `json:"total"`
}

type ChapterCreation struct {
	Number  int    `json:"number" binding:"gte=0"`
	Title   string `json:"title" binding:"lte=255"`
	Erotico bool   `json:"erotico"`
}

type ChapterUpdation struct {
	Number int    `json:"number" binding:"gte=0"`
	Title  string `json:"title" binding:"lte=255"`
}
