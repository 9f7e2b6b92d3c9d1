package audit

import (
	"context"
	"mangaapi/client/es"
	"mangaapi/persistence"
)

// Sink persists entries, implementations may fail freely, the recorder absorbs every failure.
type Sink interface {
	Write(ctx context.Context, e *Entry) error
}

// Reader lists entries newest first.
type Reader interface {
	Query(ctx context.Context, q EntryQuery) ([]Entry, uint64, error)
}

type GormSink struct {
	dsm *persistence.DataSourceManager
}

func NewGormSink(dsm *persistence.DataSourceManager) *GormSink {
	return &GormSink{dsm: dsm}
}

func (s *GormSink) Write(ctx context.Context, e *Entry) error {
	return s.dsm.GormDB(ctx).Create(e).Error
}

func (s *GormSink) Query(ctx context.Context, q EntryQuery) ([]Entry, uint64, error) {
	db := s.dsm.GormDB(ctx).Model(&Entry{})
	if q.UserID != 0 {
		db = db.Where("user_id = ?", q.UserID)
	}
	if q.Allowed != nil {
		db = db.Where("allowed = ?", *q.Allowed)
	}
	var total uint64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	entries := []Entry{}
	if err := db.Order("create_time DESC").Order("id DESC").Offset(q.Offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ESSink mirrors entries into an Elasticsearch index, keyed by entry id.
type ESSink struct {
	Index string
}

func (s *ESSink) Write(ctx context.Context, e *Entry) error {
	return es.IndexFunc(ctx, s.Index, e.ID.String(), e)
}
