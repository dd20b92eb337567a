package masterdata

import (
	"errors"
	"time"
)

// Item represents a trackable material or product definition.
type Item struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	UnitOfMeasure string    `json:"unit_of_measure"`
	BatchTracked  bool      `json:"batch_tracked"`
	SerialTracked bool      `json:"serial_tracked"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Warehouse represents a stock location.
type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
}

// ErrNotFound indicates a missing master record.
var ErrNotFound = errors.New("masterdata: record not found")

// ErrDuplicateCode indicates a code collision on create or update.
var ErrDuplicateCode = errors.New("masterdata: code already in use")
