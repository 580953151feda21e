package model

// AssignmentStatus says how the planner treated a character.
type AssignmentStatus int

const (
	// StatusPlanned — персонаж прошёл оптимизацию.
	StatusPlanned AssignmentStatus = iota
	// StatusLocked — персонаж заблокирован, его моды не трогаются.
	StatusLocked
	// StatusSkipped — персонаж не выбран для этого прохода.
	StatusSkipped
)

// String returns human-readable status name.
func (s AssignmentStatus) String() string {
	switch s {
	case StatusPlanned:
		return "planned"
	case StatusLocked:
		return "locked"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText lets the status appear by name in JSON documents.
func (s AssignmentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Loadout maps slot index (AllShapes order) to a mod ID. An empty ID is an
// empty slot.
type Loadout [NumShapes]ModID

// Get returns the mod in the shape's slot.
func (l Loadout) Get(shape Shape) ModID {
	i, ok := shape.Index()
	if !ok {
		return ""
	}
	return l[i]
}

// IDs returns the non-empty mod IDs in slot order.
func (l Loadout) IDs() []ModID {
	ids := make([]ModID, 0, NumShapes)
	for _, id := range l {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of filled slots.
func (l Loadout) Len() int {
	n := 0
	for _, id := range l {
		if id != "" {
			n++
		}
	}
	return n
}

// Score splits a loadout's value into the per-mod part and the set bonus part.
type Score struct {
	Stats    float64 `json:"stats"`
	SetBonus float64 `json:"set_bonus"`
}

// Total returns the full objective value.
func (s Score) Total() float64 {
	return s.Stats + s.SetBonus
}

// Assignment is the planner's decision for one character.
//
// Shortfalls lists shapes left empty because no eligible mod existed.
// Kept is set when the character kept its current loadout because the
// optimum did not clear the mod change threshold.
type Assignment struct {
	Character  CharacterID      `json:"character"`
	Status     AssignmentStatus `json:"status"`
	Target     string           `json:"target,omitempty"`
	Loadout    Loadout          `json:"loadout"`
	Score      Score            `json:"score"`
	Shortfalls []Shape          `json:"shortfalls,omitempty"`
	Kept       bool             `json:"kept,omitempty"`
}
