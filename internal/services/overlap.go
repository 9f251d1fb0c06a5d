package services

import (
	"time"
)

// OwnedRange is one time-boxed item keyed by the owner it applies to. OwnerKey
// is dimension-local: stagiaire uuids in the stagiaire pass, campaign-local
// groupe numeros in the groupe pass. Items with an empty key have no owner in
// the dimension being scanned and never conflict.
type OwnedRange struct {
	OwnerKey string
	Start    time.Time
	End      time.Time
	// Position of the item in the incoming request, for diagnostics.
	Index int
}

// ConflictPair reports two ranges of the same owner that overlap in time.
type ConflictPair struct {
	OwnerKey string
	A        OwnedRange
	B        OwnedRange
}

// FindConflicts runs the pairwise scan and returns every conflicting pair.
// Overlap is closed-interval: ranges that merely touch at an endpoint conflict.
// O(n²) over campaign-local cardinalities (tens of items).
func FindConflicts(items []OwnedRange) []ConflictPair {
	var conflicts []ConflictPair
	for i := 0; i < len(items); i++ {
		if items[i].OwnerKey == "" {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if items[j].OwnerKey != items[i].OwnerKey {
				continue
			}
			if rangesOverlap(items[i], items[j]) {
				conflicts = append(conflicts, ConflictPair{
					OwnerKey: items[i].OwnerKey,
					A:        items[i],
					B:        items[j],
				})
			}
		}
	}
	return conflicts
}

// HasOverlap is the boolean form used by the fail-fast validation path.
func HasOverlap(items []OwnedRange) bool {
	return len(FindConflicts(items)) > 0
}

func rangesOverlap(a, b OwnedRange) bool {
	return !a.Start.After(b.End) && !b.Start.After(a.End)
}
