package planner

import (
	"errors"
	"fmt"

	"github.com/udisondev/modplanner/internal/model"
)

// ErrPoolIntegrity is the fatal error of a planning pass: the input could
// lead to a mod being assigned twice.
var ErrPoolIntegrity = errors.New("pool integrity violation")

// PoolIntegrityError describes what is wrong with the input.
type PoolIntegrityError struct {
	Mod       model.ModID
	Character model.CharacterID // empty when the problem is in the pool itself
	Reason    string
}

func (e *PoolIntegrityError) Error() string {
	msg := ErrPoolIntegrity.Error()
	if e.Character != "" {
		msg += fmt.Sprintf(": character %s", e.Character)
	}
	if e.Mod != "" {
		msg += fmt.Sprintf(": mod %s", e.Mod)
	}
	return msg + ": " + e.Reason
}

func (e *PoolIntegrityError) Unwrap() error {
	return ErrPoolIntegrity
}
