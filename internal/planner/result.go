package planner

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/modplanner/internal/model"
)

// Result is the output of one planning pass.
//
// Assignments follow the roster order. Leftover lists, in pool order, every
// mod that no assignment holds. Complete is false when the pass was aborted;
// Assignments then hold the characters finished before the abort.
type Result struct {
	Assignments []model.Assignment `json:"assignments"`
	Leftover    []model.ModID      `json:"leftover"`
	Complete    bool               `json:"complete"`
}

// Assignment returns the assignment of a character.
func (r Result) Assignment(id model.CharacterID) (model.Assignment, bool) {
	for _, a := range r.Assignments {
		if a.Character == id {
			return a, true
		}
	}
	return model.Assignment{}, false
}

// Owners maps every assigned mod to the character holding it.
func (r Result) Owners() map[model.ModID]model.CharacterID {
	owners := make(map[model.ModID]model.CharacterID)
	for _, a := range r.Assignments {
		for _, id := range a.Loadout.IDs() {
			owners[id] = a.Character
		}
	}
	return owners
}

// Digest is a BLAKE2b-256 fingerprint of the result's JSON encoding. Equal
// inputs produce equal digests.
func (r Result) Digest() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
