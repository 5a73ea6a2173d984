package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCodeNotFound indicates the code does not resolve to a roster guest.
	// Non-fatal; callers may retry with a corrected code.
	ErrCodeNotFound = errors.New("ledger: code not found")
	// ErrInvalidMethod indicates an unknown check-in method.
	ErrInvalidMethod = errors.New("ledger: invalid check-in method")
)

// Method enumerates how a check-in was recorded.
type Method string

const (
	// MethodManual is a hand-entered code.
	MethodManual Method = "manual"
	// MethodQR is a scanned QR payload.
	MethodQR Method = "qr"
	// MethodSearch is a check-in resolved through name search.
	MethodSearch Method = "search"
)

// ParseMethod validates raw input and returns a Method.
func ParseMethod(rawInput string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(rawInput))) {
	case MethodManual:
		return MethodManual, nil
	case MethodQR:
		return MethodQR, nil
	case MethodSearch:
		return MethodSearch, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, rawInput)
	}
}

// Mark is one recorded check-in. The unique index on code backs the central
// invariant: a code has zero or one mark at all times. Name is a snapshot of
// the guest name at the most recent check-in.
type Mark struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Code      string    `gorm:"column:code;size:190;not null;uniqueIndex:idx_marks_code"`
	Name      string    `gorm:"column:name;size:320;not null"`
	Method    Method    `gorm:"column:method;size:16;not null"`
	Timestamp time.Time `gorm:"column:timestamp;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Mark) TableName() string {
	return "marks"
}

// MarkResult reports the mark state after a check-in attempt. The returned
// fields reflect the updated mark, so a repeat check-in observes the latest
// snapshot and method, not the first-seen ones.
type MarkResult struct {
	Code          string
	Name          string
	Method        Method
	Timestamp     time.Time
	AlreadyMarked bool
}
