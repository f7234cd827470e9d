package store

import (
	"github.com/cockroachdb/errors"
)

// PurchasesRepo records which releases each user owns.
type PurchasesRepo struct {
	db *DB
}

// NewPurchasesRepo creates a purchases repository.
func NewPurchasesRepo(db *DB) *PurchasesRepo {
	return &PurchasesRepo{db: db}
}

// Grant records that userID owns releaseID. Granting an already-owned
// release is a no-op.
func (r *PurchasesRepo) Grant(userID, releaseID string) error {
	_, err := r.db.Exec(`
		INSERT INTO purchases (user_id, release_id) VALUES (?, ?)
		ON CONFLICT(user_id, release_id) DO NOTHING
	`, userID, releaseID)
	return errors.Wrap(err, "failed to grant release access")
}

// Revoke removes userID's ownership of releaseID. Revoking a release the
// user never owned is a no-op.
func (r *PurchasesRepo) Revoke(userID, releaseID string) error {
	_, err := r.db.Exec(
		"DELETE FROM purchases WHERE user_id = ? AND release_id = ?",
		userID, releaseID)
	return errors.Wrap(err, "failed to revoke release access")
}

// Owns reports whether userID owns releaseID.
func (r *PurchasesRepo) Owns(userID, releaseID string) (bool, error) {
	var count int
	err := r.db.Get(&count,
		"SELECT COUNT(*) FROM purchases WHERE user_id = ? AND release_id = ?",
		userID, releaseID)
	if err != nil {
		return false, errors.Wrap(err, "failed to query purchase")
	}
	return count > 0, nil
}

// ListByUser returns the release IDs userID owns.
func (r *PurchasesRepo) ListByUser(userID string) ([]string, error) {
	var ids []string
	err := r.db.Select(&ids,
		"SELECT release_id FROM purchases WHERE user_id = ? ORDER BY granted_at",
		userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list purchases")
	}
	return ids, nil
}
