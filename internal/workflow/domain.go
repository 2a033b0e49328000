// Package workflow tracks the per-product verification state of the daily report.
package workflow

import (
	"errors"
	"time"

	"github.com/pantryledger/pantryledger/internal/sheet"
)

// State enumerates verification progress.
type State string

const (
	StatePending   State = "pending"
	StateVerifying State = "verifying"
	StateApproved  State = "approved"
)

// ErrInvalidState indicates an unknown workflow state.
var ErrInvalidState = errors.New("workflow: invalid state")

// ParseState validates s.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StatePending, StateVerifying, StateApproved:
		return st, nil
	}
	return "", ErrInvalidState
}

// ProductState is the verification record of one base product.
type ProductState struct {
	Base      string    `json:"base_product"`
	State     State     `json:"state"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Change requests a transition for one product.
type Change struct {
	Base  string
	State State
	Notes string
}

// State table columns.
var (
	ColBase      = sheet.Col("Base Product", "Producto Base", "Producto")
	ColState     = sheet.Col("State", "Estado")
	ColNotes     = sheet.Col("Notes", "Notas")
	ColUpdatedBy = sheet.Col("Updated By", "Actualizado Por")
	ColUpdatedAt = sheet.Col("Updated At", "Actualizado")
)

var columns = []sheet.Column{ColBase, ColState, ColNotes, ColUpdatedBy, ColUpdatedAt}
