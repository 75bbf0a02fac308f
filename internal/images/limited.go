package images

import (
	"context"

	"minimarket/internal/apperrors"

	"golang.org/x/sync/semaphore"
)

// LimitedStore caps the number of uploads in flight across all requests.
type LimitedStore struct {
	next Store
	sem  *semaphore.Weighted
}

func NewLimitedStore(next Store, limit int) *LimitedStore {
	if limit <= 0 {
		limit = 1
	}
	return &LimitedStore{next: next, sem: semaphore.NewWeighted(int64(limit))}
}

// Upload waits for a free slot until ctx is done.
func (s *LimitedStore) Upload(ctx context.Context, data []byte) (string, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", apperrors.Wrap(apperrors.KindUploadFailed, "image upload queue is full", err)
	}
	defer s.sem.Release(1)
	return s.next.Upload(ctx, data)
}
