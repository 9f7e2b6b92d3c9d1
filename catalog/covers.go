package catalog

import (
	"errors"
	"io"
	"io/ioutil"
	"mangaapi/bizerror"
	"mangaapi/client/s3"
	"mangaapi/persistence"
	"mangaapi/session"

	"github.com/fundwit/go-commons/types"
)

var (
	DetailCoverFunc = DetailCover
	UploadCoverFunc = UploadCover
)

func coverKey(id types.ID) string {
	return "covers/manga/" + id.String() + ".png"
}

func DetailCover(id types.ID, sec *session.Session) ([]byte, error) {
	m := Manga{}
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	if m.CoverKey == "" {
		return nil, bizerror.ErrNotFound
	}
	r, err := s3.GetObjectFunc(sec.Ctx(), m.CoverKey)
	if err != nil {
		if s3.IsNoSuchKey(err) || errors.Is(err, s3.ErrStorageNotConfigured) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

// UploadCover replaces the cover of the manga.
func UploadCover(id types.ID, r io.Reader, sec *session.Session) error {
	key := coverKey(id)
	if err := s3.PutObjectFunc(sec.Ctx(), key, r); err != nil {
		return err
	}
	return persistence.ActiveDataSourceManager.GormDB(sec.Ctx()).Model(&Manga{}).Where("id = ?", id).
		UpdateColumn("cover_key", key).Error
}
