package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smartstore/engine/internal/models"
)

type ClientRepo struct {
	db *DB
}

func NewClientRepo(db *DB) *ClientRepo {
	return &ClientRepo{db: db}
}

func (r *ClientRepo) Insert(ctx context.Context, client *models.Client) error {
	query := `INSERT INTO clients (id, name, face_id, fingerprint_id, is_active, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	active := 0
	if client.IsActive {
		active = 1
	}

	_, err := r.db.conn.ExecContext(ctx, query,
		client.ID, client.Name, client.FaceID, client.FingerprintID, active, client.RegisteredAt)
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

func (r *ClientRepo) GetByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT id, name, face_id, fingerprint_id, is_active, registered_at
		FROM clients WHERE id = ? AND is_active = 1`
	return r.scanOne(r.db.conn.QueryRowContext(ctx, query, id))
}

func (r *ClientRepo) GetByFingerprint(ctx context.Context, fingerprintID string) (*models.Client, error) {
	query := `SELECT id, name, face_id, fingerprint_id, is_active, registered_at
		FROM clients WHERE fingerprint_id = ? AND is_active = 1`
	return r.scanOne(r.db.conn.QueryRowContext(ctx, query, fingerprintID))
}

// ResolveFingerprint maps a sensor reading to the client identity the face
// oracle would report, for dual-verification matching.
func (r *ClientRepo) ResolveFingerprint(ctx context.Context, fingerprintID string) (string, string, error) {
	client, err := r.GetByFingerprint(ctx, fingerprintID)
	if err != nil {
		return "", "", err
	}
	return client.ID, client.Name, nil
}

func (r *ClientRepo) scanOne(row *sql.Row) (*models.Client, error) {
	var client models.Client
	var active int
	err := row.Scan(&client.ID, &client.Name, &client.FaceID, &client.FingerprintID, &active, &client.RegisteredAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("client not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	client.IsActive = active == 1
	return &client, nil
}
