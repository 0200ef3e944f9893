package notify

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/logger"
)

// Dispatcher hands payloads to the delivery channel.
type Dispatcher interface {
	Enqueue(ctx context.Context, payloads []domain.NotificationPayload) (int, error)
}

// Summary is what callers get back: counts, never payload bodies.
type Summary struct {
	Planned  int  `json:"planned"`
	Enqueued int  `json:"enqueued"`
	Users    int  `json:"users"`
	Sessions int  `json:"sessions"`
	Grouped  bool `json:"grouped"`
}

// Service plans and dispatches in one call.
type Service struct {
	planner    *Planner
	dispatcher Dispatcher
	log        logger.Logger
}

func NewService(planner *Planner, dispatcher Dispatcher, log logger.Logger) *Service {
	return &Service{planner: planner, dispatcher: dispatcher, log: log}
}

func (s *Service) Plan(ctx context.Context, changes domain.ChangeSet, groupByUser bool) (Plan, error) {
	return s.planner.Plan(ctx, changes, groupByUser)
}

// Dispatch enqueues a plan built earlier. Callers must not hold an import lock.
func (s *Service) Dispatch(ctx context.Context, plan Plan) (Summary, error) {
	sum := Summary{
		Planned:  len(plan.Payloads),
		Users:    plan.Users,
		Sessions: plan.Sessions,
		Grouped:  plan.Grouped,
	}
	if len(plan.Payloads) == 0 {
		return sum, nil
	}

	n, err := s.dispatcher.Enqueue(ctx, plan.Payloads)
	sum.Enqueued = n
	if err != nil {
		return sum, fmt.Errorf("dispatch %d payloads: %w", len(plan.Payloads), err)
	}

	s.log.Info("notifications enqueued",
		logger.Int("payloads", n),
		logger.Int("users", sum.Users),
		logger.Int("sessions", sum.Sessions),
		logger.Bool("grouped", sum.Grouped),
	)
	return sum, nil
}

// PlanAndDispatch plans changes and enqueues the result.
func (s *Service) PlanAndDispatch(ctx context.Context, changes domain.ChangeSet, groupByUser bool) (Summary, error) {
	plan, err := s.Plan(ctx, changes, groupByUser)
	if err != nil {
		return Summary{}, err
	}
	return s.Dispatch(ctx, plan)
}
