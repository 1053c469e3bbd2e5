package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReplayStore is the part of Repository replay needs.
type ReplayStore interface {
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	ReplayEvent(ctx context.Context, eventID int64) error
}

// ReplayService 将失败的事件重新放回待发送队列，由 Dispatcher 发布
type ReplayService struct {
	repo   ReplayStore
	logger *zap.Logger
}

func NewReplayService(repo ReplayStore, logger *zap.Logger) *ReplayService {
	return &ReplayService{
		repo:   repo,
		logger: logger,
	}
}

// ReplayFailedEvents requeues up to limit failed events and returns how many were requeued.
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	requeued := 0
	for _, event := range events {
		if err := s.repo.ReplayEvent(ctx, event.ID); err != nil {
			// 记录错误但继续处理其他事件
			s.logger.Error("Failed to requeue event", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		requeued++
	}

	s.logger.Info("Requeued failed outbox events",
		zap.Int("found", len(events)),
		zap.Int("requeued", requeued),
	)
	return requeued, nil
}

// ReplayEvent requeues a single event.
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	if err := s.repo.ReplayEvent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to replay event %d: %w", eventID, err)
	}
	s.logger.Info("Requeued outbox event", zap.Int64("event_id", eventID))
	return nil
}
