package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID        string
	Name      string
	Price     float64
	VisualID  string
	IsActive  bool
	CreatedAt time.Time
}

func NewProduct(name string, price float64, visualID string) *Product {
	return &Product{
		ID:        uuid.New().String(),
		Name:      name,
		Price:     price,
		VisualID:  visualID,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}
