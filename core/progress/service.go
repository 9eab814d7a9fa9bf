package progress

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/metalearn/core"
)

type (
	// Reader is the read port used by the recommender.
	Reader interface {
		// FetchProgressForUser returns all the user's records, in storage order.
		FetchProgressForUser(ctx context.Context, userID string) ([]Record, error)
	}

	Repository interface {
		Reader

		// UpsertProgress creates the record or updates the existing one with the same (UserID, ModuleName).
		UpsertProgress(ctx context.Context, rec Record) (Record, error)
	}

	Service interface {
		// RecommendRemediation runs the recommender on the user's records.
		// A nil threshold means the service's default threshold.
		RecommendRemediation(ctx context.Context, userID string, threshold *float64) ([]Recommendation, error)
		ListForUser(ctx context.Context, userID string) ([]Record, error)
		Set(ctx context.Context, data SetRecord) (Record, error)
		DefaultThreshold() float64
	}

	service struct {
		repo      Repository
		threshold float64
		nowFunc   func() time.Time
	}
)

var _ Service = (*service)(nil) // interface compliance check

// NewService returns a progress Service with the given default threshold.
func NewService(repo Repository, threshold float64) (Service, error) {
	if err := CheckThreshold(threshold); err != nil {
		return nil, err
	}
	return &service{repo: repo, threshold: threshold, nowFunc: time.Now}, nil
}

// CheckThreshold returns a core.ValidationError if threshold is out of [MinProgress, MaxProgress].
func CheckThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < MinProgress || threshold > MaxProgress {
		return core.NewFieldValidationError(
			"threshold",
			fmt.Errorf("threshold must be between %d and %d", MinProgress, MaxProgress),
		)
	}
	return nil
}

func (svc *service) DefaultThreshold() float64 { return svc.threshold }

// RecommendRemediation has no side effect: read failures are returned as is, with no partial result.
func (svc *service) RecommendRemediation(ctx context.Context, userID string, threshold *float64) ([]Recommendation, error) {
	thr := svc.threshold
	if threshold != nil {
		if err := CheckThreshold(*threshold); err != nil {
			return nil, err
		}
		thr = *threshold
	}

	records, err := svc.repo.FetchProgressForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Recommend(records, thr), nil
}

func (svc *service) ListForUser(ctx context.Context, userID string) ([]Record, error) {
	records, err := svc.repo.FetchProgressForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (svc *service) Set(ctx context.Context, data SetRecord) (Record, error) {
	now := svc.nowFunc().UTC()
	rec := Record{
		UserID:     data.UserID,
		ModuleName: data.ModuleName,
		Progress:   *data.Progress,
		Struggling: data.Struggling,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if data.LastActive != nil {
		la := data.LastActive.UTC()
		rec.LastActive = &la
	} else {
		rec.LastActive = &now
	}

	rec, err := svc.repo.UpsertProgress(ctx, rec)
	if err != nil {
		return Record{}, errors.Wrap(err, "upserting progress")
	}
	return rec, nil
}
