// Package selection provides the working evidence selection for a referral.
package selection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/drfirst/go-referral/internal/domain/referral"
)

var (
	// ErrFrozen is returned when a toggle is attempted on a frozen selection
	ErrFrozen = errors.New("selection is frozen")
	// ErrUnknownCategory is returned for a category outside the known set
	ErrUnknownCategory = errors.New("unknown selection category")
)

// Category names a kind of evidence
type Category string

const (
	CategorySOAPNotes Category = "soapNotes"
	CategoryLabs      Category = "labs"
	CategoryImaging   Category = "imaging"
)

// ParseCategory validates a category name
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategorySOAPNotes, CategoryLabs, CategoryImaging:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Default is the selection offered before anything has been committed
func Default() referral.Evidence {
	return referral.Evidence{
		SOAPNotes: []string{"soap-001", "soap-002", "soap-003"},
		Labs:      []string{"lab-003"},
		Imaging:   []string{"img-001"},
	}
}

// Toggle adds id to the category when absent and removes it when present.
// Membership order is preserved; a re-added id goes to the end.
func Toggle(e referral.Evidence, category Category, id string) (referral.Evidence, error) {
	out := e.Clone()
	var ids *[]string
	switch category {
	case CategorySOAPNotes:
		ids = &out.SOAPNotes
	case CategoryLabs:
		ids = &out.Labs
	case CategoryImaging:
		ids = &out.Imaging
	default:
		return e, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	for i, existing := range *ids {
		if existing == id {
			*ids = append((*ids)[:i], (*ids)[i+1:]...)
			return out, nil
		}
	}
	*ids = append(*ids, id)
	return out, nil
}

// Buffer holds the uncommitted working selection. Edits here do not touch
// the stored referral until the caller commits a snapshot.
type Buffer struct {
	mu       sync.RWMutex
	working  referral.Evidence
	frozen   bool
	defaults referral.Evidence
}

// NewBuffer creates a buffer seeded with defaults
func NewBuffer(defaults referral.Evidence) *Buffer {
	return &Buffer{
		working:  defaults.Clone(),
		defaults: defaults.Clone(),
	}
}

// Load seeds the buffer from persisted state. An active referral supplies its
// committed selection. With no active referral and at least one sent
// referral, the buffer is frozen on the defaults.
func (b *Buffer) Load(st referral.AppState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case st.CurrentReferral != nil:
		b.working = st.CurrentReferral.Evidence()
		b.frozen = false
	case len(st.ReferralHistory) > 0:
		b.working = b.defaults.Clone()
		b.frozen = true
	default:
		b.working = b.defaults.Clone()
		b.frozen = false
	}
}

// Toggle flips membership of id in category
func (b *Buffer) Toggle(category Category, id string) (referral.Evidence, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return b.working.Clone(), ErrFrozen
	}
	next, err := Toggle(b.working, category, id)
	if err != nil {
		return b.working.Clone(), err
	}
	b.working = next
	return next.Clone(), nil
}

// Snapshot returns a copy of the working selection
func (b *Buffer) Snapshot() referral.Evidence {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.working.Clone()
}

// Frozen reports whether toggles are currently rejected
func (b *Buffer) Frozen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frozen
}

// Freeze blocks further edits
func (b *Buffer) Freeze() {
	b.mu.Lock()
	b.frozen = true
	b.mu.Unlock()
}

// Thaw allows edits again
func (b *Buffer) Thaw() {
	b.mu.Lock()
	b.frozen = false
	b.mu.Unlock()
}

// Reset restores the defaults and thaws
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.working = b.defaults.Clone()
	b.frozen = false
}
