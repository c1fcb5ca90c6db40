package entitylist

import "github.com/dispatch-cms/dispatch/pkg/entity"

// ActionKind names one of the three state transitions.
type ActionKind string

const (
	ListReplaced  ActionKind = "list_replaced"
	EntityCreated ActionKind = "entity_created"
	EntityUpdated ActionKind = "entity_updated"
)

// Action describes a transition to apply through Reduce.
// Which fields are read depends on Kind.
type Action struct {
	Kind       ActionKind
	EntityType string

	// ListReplaced
	IDs     []string
	Records []entity.Entity

	// EntityCreated
	Record entity.Entity

	// EntityUpdated
	ID     string
	Fields map[string]any
}

// ReplaceListAction builds a ListReplaced action.
func ReplaceListAction(entityType string, ids []string, records []entity.Entity) Action {
	return Action{Kind: ListReplaced, EntityType: entityType, IDs: ids, Records: records}
}

// AppendCreatedAction builds an EntityCreated action.
func AppendCreatedAction(entityType string, record entity.Entity) Action {
	return Action{Kind: EntityCreated, EntityType: entityType, Record: record}
}

// UpdateRecordAction builds an EntityUpdated action.
func UpdateRecordAction(entityType, id string, fields map[string]any) Action {
	return Action{Kind: EntityUpdated, EntityType: entityType, ID: id, Fields: fields}
}

// Reduce applies a to s and returns the resulting state.
// Unknown kinds leave the state unchanged.
func Reduce(s State, a Action) State {
	switch a.Kind {
	case ListReplaced:
		return s.ReplaceList(a.EntityType, a.IDs, a.Records)
	case EntityCreated:
		return s.AppendCreated(a.EntityType, a.Record)
	case EntityUpdated:
		return s.UpdateRecord(a.EntityType, a.ID, a.Fields)
	default:
		return s
	}
}
