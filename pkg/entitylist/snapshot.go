package entitylist

import (
	"encoding/json"

	"github.com/dispatch-cms/dispatch/pkg/entity"
)

// SliceSnapshot is the JSON-serializable form of one slice.
type SliceSnapshot struct {
	Results  []string                 `json:"results"`
	Entities map[string]entity.Entity `json:"entities"`
}

// Snapshot is the JSON-serializable form of a State, keyed by entity type.
type Snapshot map[string]SliceSnapshot

// Snapshot copies the state into its serializable form.
func (s State) Snapshot() Snapshot {
	out := make(Snapshot, len(s.slices))
	for t := range s.slices {
		out[t] = SliceSnapshot{
			Results:  s.Results(t),
			Entities: s.Entities(t),
		}
	}
	return out
}

// FromSnapshot rebuilds a State from its serializable form.
func FromSnapshot(snap Snapshot) State {
	s := New()
	for t, sl := range snap {
		records := make([]entity.Entity, 0, len(sl.Entities))
		for id, e := range sl.Entities {
			e.ID = id
			records = append(records, e)
		}
		s = s.ReplaceList(t, sl.Results, records)
	}
	return s
}

// MarshalJSON encodes the state through its snapshot.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// UnmarshalJSON decodes a snapshot into the state.
func (s *State) UnmarshalJSON(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	*s = FromSnapshot(snap)
	return nil
}
