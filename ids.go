package main

import (
	"database/sql"
	"fmt"
)

const (
	objClassRequest   = "REQ"
	objClassWorkOrder = "WOR"
	woPrefix          = "W"
	idSeqDigits       = 4
)

// nextObjectID mints the next request identifier for a (year, product
// line) bucket: prefix + last two year digits + "-" + zero-padded
// progressive, e.g. R25-0001. The counter is advanced with a single
// atomic UPDATE so two concurrent mints can never read the same value.
func nextObjectID(tx *sql.Tx, objClass, objYear, objPline string) (string, error) {
	if objClass != objClassRequest {
		return "", fmt.Errorf("nextObjectID: unsupported object class %q", objClass)
	}
	if len(objYear) != 4 {
		return "", fmt.Errorf("nextObjectID: year must be YYYY, got %q", objYear)
	}

	var prefix string
	var prog int
	err := tx.QueryRow(
		"UPDATE torp_objnumerator SET prog = prog + 1 WHERE obj_class=? AND obj_year=? AND obj_pline=? RETURNING prefix, prog",
		objClass, objYear, objPline).Scan(&prefix, &prog)
	if err == sql.ErrNoRows {
		// First id in this bucket, seed the counter at 1.
		prefix = objClass[:1]
		prog = 1
		_, err = tx.Exec(
			"INSERT INTO torp_objnumerator (obj_class, obj_year, obj_pline, prefix, prog) VALUES (?, ?, ?, ?, ?)",
			objClass, objYear, objPline, prefix, prog)
	}
	if err != nil {
		return "", fmt.Errorf("nextObjectID %s/%s/%s: %w", objClass, objYear, objPline, err)
	}

	return fmt.Sprintf("%s%s-%0*d", prefix, objYear[2:4], idSeqDigits, prog), nil
}

// workOrderID derives the work-order id from its parent request id.
// Work orders borrow the request's sequence number: R25-0007 → W25-0007.
func workOrderID(reqID string) (string, error) {
	if len(reqID) < 2 {
		return "", fmt.Errorf("workOrderID: invalid request id %q", reqID)
	}
	return woPrefix + reqID[1:], nil
}
