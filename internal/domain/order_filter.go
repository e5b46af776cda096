package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const MaxPageSize = 100

// OrderFilter has AND semantics across fields, OR semantics within Statuses
type OrderFilter struct {
	UserID       *uuid.UUID
	Statuses     []OrderStatus
	NumberSearch string
	CreatedAt    *TimeRange

	Page     int
	PageSize int
}

func (f OrderFilter) Validate() error {
	if f.Page < 1 {
		return errors.New("page must be positive")
	}

	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be between 1 and %d", MaxPageSize)
	}

	for _, status := range f.Statuses {
		if _, err := ToOrderStatus(string(status)); err != nil {
			return fmt.Errorf("status[%s]: %w", status, err)
		}
	}

	if f.CreatedAt != nil {
		if err := f.CreatedAt.Validate(); err != nil {
			return fmt.Errorf("createdAt: %w", err)
		}
	}

	return nil
}

func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type TimeRange struct {
	Before *time.Time
	After  *time.Time
}

func (t TimeRange) Validate() error {
	if t.Before == nil && t.After == nil {
		return errors.New("both Before and After are nil")
	}

	if t.Before != nil && t.After != nil {
		if t.Before.Before(*t.After) {
			return errors.New("before is earlier than after")
		}
	}

	return nil
}
