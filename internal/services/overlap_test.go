package services

import (
	"testing"
	"time"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestFindConflictsDisjointRanges(t *testing.T) {
	items := []OwnedRange{
		{OwnerKey: "a", Start: day(2024, 1, 1), End: day(2024, 1, 31), Index: 0},
		{OwnerKey: "a", Start: day(2024, 2, 1), End: day(2024, 2, 28), Index: 1},
	}
	if got := FindConflicts(items); len(got) != 0 {
		t.Fatalf("expected no conflicts, got %v", got)
	}
}

func TestFindConflictsOverlappingThird(t *testing.T) {
	items := []OwnedRange{
		{OwnerKey: "a", Start: day(2024, 1, 1), End: day(2024, 1, 31), Index: 0},
		{OwnerKey: "a", Start: day(2024, 2, 1), End: day(2024, 2, 28), Index: 1},
		{OwnerKey: "a", Start: day(2024, 1, 15), End: day(2024, 2, 15), Index: 2},
	}
	got := FindConflicts(items)
	if len(got) != 2 {
		t.Fatalf("expected 2 conflicting pairs, got %d: %v", len(got), got)
	}
	if got[0].A.Index != 0 || got[0].B.Index != 2 {
		t.Errorf("first conflict: got pair (%d,%d), want (0,2)", got[0].A.Index, got[0].B.Index)
	}
	if got[1].A.Index != 1 || got[1].B.Index != 2 {
		t.Errorf("second conflict: got pair (%d,%d), want (1,2)", got[1].A.Index, got[1].B.Index)
	}
}

func TestFindConflictsTouchingEndpointsConflict(t *testing.T) {
	items := []OwnedRange{
		{OwnerKey: "a", Start: day(2024, 1, 1), End: day(2024, 1, 31), Index: 0},
		{OwnerKey: "a", Start: day(2024, 1, 31), End: day(2024, 2, 28), Index: 1},
	}
	if !HasOverlap(items) {
		t.Fatal("ranges sharing an endpoint day must conflict")
	}
}

func TestFindConflictsDifferentOwnersNeverConflict(t *testing.T) {
	items := []OwnedRange{
		{OwnerKey: "a", Start: day(2024, 1, 1), End: day(2024, 3, 1), Index: 0},
		{OwnerKey: "b", Start: day(2024, 1, 1), End: day(2024, 3, 1), Index: 1},
	}
	if HasOverlap(items) {
		t.Fatal("identical ranges of different owners must not conflict")
	}
}

func TestFindConflictsEmptyOwnerSkipped(t *testing.T) {
	items := []OwnedRange{
		{OwnerKey: "", Start: day(2024, 1, 1), End: day(2024, 3, 1), Index: 0},
		{OwnerKey: "", Start: day(2024, 1, 1), End: day(2024, 3, 1), Index: 1},
	}
	if HasOverlap(items) {
		t.Fatal("ownerless ranges must never conflict")
	}
}

func TestFindConflictsContainedRange(t *testing.T) {
	items := []OwnedRange{
		{OwnerKey: "a", Start: day(2024, 1, 1), End: day(2024, 6, 30), Index: 0},
		{OwnerKey: "a", Start: day(2024, 3, 1), End: day(2024, 3, 15), Index: 1},
	}
	if !HasOverlap(items) {
		t.Fatal("a fully contained range must conflict")
	}
}
