package release

import (
	"slices"
)

// Listing is the ordered set of downloadable candidates, newest first.
type Listing struct {
	candidates []Candidate
}

// NewListing drops candidates without a locator or a parsed date and sorts
// the rest by publish date, newest first. Candidates sharing a date keep the
// order in which the source listed them.
func NewListing(candidates []Candidate) *Listing {
	kept := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		if !c.HasLocator() || c.Published.IsZero() {
			continue
		}

		kept = append(kept, c)
	}

	slices.SortStableFunc(kept, func(a, b Candidate) int {
		return b.Published.Compare(a.Published)
	})

	return &Listing{candidates: kept}
}

// Len returns the number of usable candidates.
func (l *Listing) Len() int {
	return len(l.candidates)
}

// Candidates returns a copy of the ordered candidates.
func (l *Listing) Candidates() []Candidate {
	return slices.Clone(l.candidates)
}

// Latest returns the newest candidate, or ErrNotFound for an empty listing.
func (l *Listing) Latest() (*Candidate, error) {
	if len(l.candidates) == 0 {
		return nil, ErrNotFound
	}

	latest := l.candidates[0]

	return &latest, nil
}
