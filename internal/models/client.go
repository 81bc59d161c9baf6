package models

import (
	"time"

	"github.com/google/uuid"
)

type Client struct {
	ID            string
	Name          string
	FaceID        string
	FingerprintID string
	IsActive      bool
	RegisteredAt  time.Time
}

func NewClient(name, faceID, fingerprintID string) *Client {
	return &Client{
		ID:            uuid.New().String(),
		Name:          name,
		FaceID:        faceID,
		FingerprintID: fingerprintID,
		IsActive:      true,
		RegisteredAt:  time.Now(),
	}
}
