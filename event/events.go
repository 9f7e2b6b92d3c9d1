package event

import (
	"context"
	"mangaapi/persistence"
	"mangaapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var (
	EventPersistCreateFunc = eventPersistCreate
	PublishFunc            = Publish
)

// CreateEvent persists an event with db, which is usually the transaction of the change.
func CreateEvent(sourceType string, sourceId types.ID, sourceDesc string, category EventCategory,
	updatedProperties UpdatedProperties, updatedRelations UpdatedRelations,
	identity *session.Identity, timestamp types.Timestamp, db *gorm.DB) (*EventRecord, error) {

	record := EventRecord{
		Event: Event{
			SourceType: sourceType,
			SourceId:   sourceId,
			SourceDesc: sourceDesc,

			EventCategory:     category,
			UpdatedProperties: updatedProperties,
			UpdatedRelations:  updatedRelations,

			CreatorId:   identity.ID,
			CreatorName: identity.Name,
		},
		Timestamp: timestamp,
	}
	if err := EventPersistCreateFunc(&record, db); err != nil {
		return nil, err
	}
	return &record, nil
}

// Publish records a committed change and notifies handlers. Failures are logged only.
func Publish(ctx context.Context, ev Event) *EventRecord {
	record := &EventRecord{Event: ev, Timestamp: types.CurrentTimestamp()}
	if persistence.ActiveDataSourceManager != nil {
		if db := persistence.ActiveDataSourceManager.GormDB(ctx); db != nil {
			if err := EventPersistCreateFunc(record, db); err != nil {
				logrus.Warnf("failed to persist %s event of %s %d: %v", ev.EventCategory, ev.SourceType, ev.SourceId, err)
			}
		}
	}
	InvokeHandlersFunc(record)
	return record
}

func eventPersistCreate(record *EventRecord, db *gorm.DB) error {
	return db.Create(record).Error
}
