package main

import (
	"testing"
)

func mintID(t *testing.T, objYear, objPline string) string {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	id, err := nextObjectID(tx, objClassRequest, objYear, objPline)
	if err != nil {
		t.Fatalf("nextObjectID: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return id
}

func TestNextObjectIDSequence(t *testing.T) {
	useTestDB(t)

	if got := mintID(t, "2025", "PTO"); got != "R25-0001" {
		t.Errorf("first id = %q, want R25-0001", got)
	}
	if got := mintID(t, "2025", "PTO"); got != "R25-0002" {
		t.Errorf("second id = %q, want R25-0002", got)
	}
	if got := mintID(t, "2025", "PTO"); got != "R25-0003" {
		t.Errorf("third id = %q, want R25-0003", got)
	}
}

func TestNextObjectIDSeparateBuckets(t *testing.T) {
	useTestDB(t)

	mintID(t, "2025", "PTO")
	mintID(t, "2025", "PTO")

	// A different product line or year starts its own counter.
	if got := mintID(t, "2025", "HYD"); got != "R25-0001" {
		t.Errorf("HYD first id = %q, want R25-0001", got)
	}
	if got := mintID(t, "2026", "PTO"); got != "R26-0001" {
		t.Errorf("2026 first id = %q, want R26-0001", got)
	}
	if got := mintID(t, "2025", "PTO"); got != "R25-0003" {
		t.Errorf("PTO continues = %q, want R25-0003", got)
	}
}

func TestNextObjectIDBadYear(t *testing.T) {
	useTestDB(t)

	tx, _ := db.Begin()
	defer tx.Rollback()
	if _, err := nextObjectID(tx, objClassRequest, "25", "PTO"); err == nil {
		t.Error("expected error for two-digit year")
	}
}

func TestWorkOrderID(t *testing.T) {
	got, err := workOrderID("R25-0007")
	if err != nil {
		t.Fatalf("workOrderID: %v", err)
	}
	if got != "W25-0007" {
		t.Errorf("workOrderID(R25-0007) = %q, want W25-0007", got)
	}

	if _, err := workOrderID("R"); err == nil {
		t.Error("expected error for too-short request id")
	}
}
