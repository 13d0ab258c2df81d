package handlers

import (
	"context"

	"github.com/blockedby/spending-stats/internal/publisher"
	"github.com/blockedby/spending-stats/internal/repository"
)

// SpendingRepository defines interface for spending data access
type SpendingRepository interface {
	TotalSpent(ctx context.Context, userID int64) (float64, error)
	AverageByAgeGroup(ctx context.Context) ([]repository.AgeGroupAverage, error)
	UpsertHighSpender(ctx context.Context, hs repository.HighSpender) error
}

// EventPublisher publishes high spender events. It is optional.
type EventPublisher interface {
	PublishHighSpenderRecorded(ctx context.Context, event publisher.HighSpenderRecorded) error
}
