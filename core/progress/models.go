package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/metalearn/core"
)

const (
	MinProgress = 0
	MaxProgress = 100
)

// Record is a student's progress on a single module.
// Progress is always within [MinProgress, MaxProgress].
type Record struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ModuleName string     `json:"module_name"`
	Progress   float64    `json:"progress"`
	Struggling bool       `json:"struggling"`
	LastActive *time.Time `json:"last_active"` // UTC
	CreatedAt  time.Time  `json:"created_at"`  // UTC
	UpdatedAt  time.Time  `json:"updated_at"`  // UTC
}

// SetRecord contains the information needed to create or update a Record.
// (UserID, ModuleName) identifies the Record.
type SetRecord struct {
	UserID     string     `json:"user_id" validate:"required"`
	ModuleName string     `json:"module_name" validate:"required,notblank,max=255"`
	Progress   *float64   `json:"progress" validate:"required,min=0,max=100"`
	Struggling bool       `json:"struggling"`
	LastActive *time.Time `json:"last_active"`
}

func (sr *SetRecord) Validate(validate *validator.Validate) error {
	sr.UserID = core.CleanString(sr.UserID)
	sr.ModuleName = core.CleanString(sr.ModuleName)
	return validate.Struct(sr)
}
