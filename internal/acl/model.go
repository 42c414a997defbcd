package acl

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
)

// MaxNoteLength bounds the free form note.
const MaxNoteLength = 500

// Validation codes. They double as the constraint message so the error
// carries them as its sub status.
const (
	CodeAccountRequired = "ACL.ACCOUNT_REQUIRED"
	CodeIDImmutable     = "ACL.ID_IMMUTABLE"
)

// UserACL grants or revokes access for one account.
type UserACL struct {
	bun.BaseModel `bun:"table:user_acls,alias:ua"`

	ID        string    `bun:"id,pk" json:"id"`
	AccountID string    `bun:"account_id" json:"accountId"`
	IsActive  bool      `bun:"is_active" json:"isActive"`
	Note      string    `bun:"note" json:"note,omitempty"`
	CreatedBy string    `bun:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `bun:"updated_by" json:"updatedBy,omitempty"`
	CreatedAt time.Time `bun:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at" json:"updatedAt"`
}

// ValidateCreate checks a draft about to be inserted.
func (u UserACL) ValidateCreate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.AccountID, validation.Required.ErrorObject(
			validation.NewError("validation_required", CodeAccountRequired),
		), validation.Length(1, 64)),
		validation.Field(&u.Note, validation.Length(0, MaxNoteLength)),
	)
}

// ValidateUpdate checks a partial draft. Only the fields present are checked.
func (u UserACL) ValidateUpdate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.AccountID, validation.Length(1, 64)),
		validation.Field(&u.Note, validation.Length(0, MaxNoteLength)),
		validation.Field(&u.ID, validation.Empty.ErrorObject(
			validation.NewError("validation_immutable", CodeIDImmutable),
		)),
	)
}
