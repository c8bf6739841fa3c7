package dto

import (
	"github.com/ougirez/aedsync/internal/domain"
)

// Envelope is the bulk payload exchanged with the ingestion endpoint.
type Envelope struct {
	AEDs []domain.AED `json:"aeds" validate:"required,dive"`
}

type UpdateResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Upserted int64  `json:"upserted"`
}

type ListResponse struct {
	Success bool         `json:"success"`
	Data    []domain.AED `json:"data"`
}

type AvailabilityResponse struct {
	Availability domain.Availability `json:"availability"`
	At           string              `json:"at"`
	Open         bool                `json:"open"`
}
