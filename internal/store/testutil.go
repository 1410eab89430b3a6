package store

// OpenTestDB opens a throwaway database under dir, grounded on the
// teacher's internal/storage/testutil.go fixture helper.
func OpenTestDB(dir string) (*DB, error) {
	return Open(dir, "", "test.db")
}
