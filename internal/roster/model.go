package roster

import "errors"

var (
	// ErrEmptyName indicates a guest name was empty after trimming.
	ErrEmptyName = errors.New("roster: empty guest name")
	// ErrEmptyCode indicates a guest code was empty after trimming. The
	// store never synthesizes codes; callers do that before adding.
	ErrEmptyCode = errors.New("roster: empty guest code")
	// ErrDuplicateCode indicates the code is already present in the roster.
	ErrDuplicateCode = errors.New("roster: code already exists")
)

// Guest is one roster entry. Code originates from a QR payload or is
// synthesized, and is immutable once the guest is created.
type Guest struct {
	ID   uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Code string `gorm:"column:code;size:190;not null;uniqueIndex:idx_guests_code"`
	Name string `gorm:"column:name;size:320;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Guest) TableName() string {
	return "guests"
}
