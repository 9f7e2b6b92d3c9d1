package event

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fundwit/go-commons/types"
)

const (
	EventCategoryCreated         = "CREATED"
	EventCategoryDeleted         = "DELETED"
	EventCategoryPropertyUpdated = "PROPERTY_UPDATED"
	EventCategoryRelationUpdated = "RELATION_UPDATED"
)

// source types of access control changes
const (
	SourceGroup       = "GROUP"
	SourceGroupMember = "GROUP_MEMBER"
	SourceGrant       = "ACCESS_GRANT"
	SourceOwner       = "OWNER"
	SourceUserProfile = "USER_PROFILE"
)

type EventCategory string

type Event struct {
	SourceId   types.ID `json:"sourceId"`
	SourceType string   `json:"sourceType"`
	SourceDesc string   `json:"sourceDesc"`

	CreatorId   types.ID `json:"creatorId"`
	CreatorName string   `json:"creatorName"`

	EventCategory     EventCategory     `json:"eventCategory"`
	UpdatedProperties UpdatedProperties `json:"updatedProperties" sql:"type:TEXT"`
	UpdatedRelations  UpdatedRelations  `json:"updatedRelations" sql:"type:TEXT"`
}

type EventRecord struct {
	ID uint64 `json:"id" gorm:"primary_key;AUTO_INCREMENT"`
	Event

	Timestamp types.Timestamp `json:"timestamp" sql:"type:DATETIME(6)"`
}

func (r *EventRecord) TableName() string {
	return "dac_events"
}

type UpdatedProperty struct {
	PropertyName string `json:"propertyName"`
	OldValue     string `json:"oldValue"`
	NewValue     string `json:"newValue"`
}

type UpdatedProperties []UpdatedProperty

type UpdatedRelation struct {
	PropertyName string `json:"propertyName"`
	TargetType   string `json:"targetType"`
	OldTargetId  string `json:"oldTargetId"`
	NewTargetId  string `json:"newTargetId"`
}

type UpdatedRelations []UpdatedRelation

func (t UpdatedProperties) Value() (driver.Value, error) {
	return jsonValue(t)
}

func (t *UpdatedProperties) Scan(v interface{}) error {
	return jsonScan(v, t)
}

func (t UpdatedRelations) Value() (driver.Value, error) {
	return jsonValue(t)
}

func (t *UpdatedRelations) Scan(v interface{}) error {
	return jsonScan(v, t)
}

func jsonValue(v interface{}) (driver.Value, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(jsonBytes), nil
}

func jsonScan(v interface{}, out interface{}) error {
	switch s := v.(type) {
	case string:
		return json.Unmarshal([]byte(s), out)
	case []byte:
		return json.Unmarshal(s, out)
	case nil:
		return nil
	default:
		return fmt.Errorf("type is neither string nor []byte: %T %v", v, v)
	}
}
