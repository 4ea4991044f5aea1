package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/store"
)

// RuleService manages deliverable rules and their assignment to promotion
// projects.
type RuleService interface {
	Create(ctx context.Context, teacherID uuid.UUID, ruleType domain.RuleType, payload json.RawMessage) (*domain.DeliverableRule, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.DeliverableRule, error)
	List(ctx context.Context) ([]domain.DeliverableRule, error)
	// UpdatePayload replaces the payload. The rule type never changes.
	UpdatePayload(ctx context.Context, id uuid.UUID, payload json.RawMessage) (*domain.DeliverableRule, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.DeliverableRule, error)
	Assign(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error
	Unassign(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error
}

type ruleService struct {
	rules  store.RuleStore
	logger *slog.Logger
}

// NewRuleService creates a RuleService.
func NewRuleService(rules store.RuleStore, logger *slog.Logger) RuleService {
	return &ruleService{rules: rules, logger: logger.With("component", "rule_service")}
}

func (s *ruleService) Create(ctx context.Context, teacherID uuid.UUID, ruleType domain.RuleType, payload json.RawMessage) (*domain.DeliverableRule, error) {
	r, err := domain.NewDeliverableRule(ruleType, payload, teacherID)
	if err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, r); err != nil {
		return nil, err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("deliverable rule created",
		slog.String("rule_id", r.ID.String()),
		slog.String("rule_type", string(r.RuleType)))
	return r, nil
}

func (s *ruleService) Get(ctx context.Context, id uuid.UUID) (*domain.DeliverableRule, error) {
	return s.rules.GetByID(ctx, id)
}

func (s *ruleService) List(ctx context.Context) ([]domain.DeliverableRule, error) {
	return s.rules.List(ctx)
}

func (s *ruleService) UpdatePayload(ctx context.Context, id uuid.UUID, payload json.RawMessage) (*domain.DeliverableRule, error) {
	r, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Payload = payload
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Now().UTC()
	if err := s.rules.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *ruleService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.rules.Delete(ctx, id)
}

func (s *ruleService) ListByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.DeliverableRule, error) {
	return s.rules.ListByPromotionProject(ctx, promotionProjectID)
}

func (s *ruleService) Assign(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error {
	if err := s.rules.Assign(ctx, ruleID, promotionProjectID); err != nil {
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("deliverable rule assigned",
		slog.String("rule_id", ruleID.String()),
		slog.String("promotion_project_id", promotionProjectID.String()))
	return nil
}

func (s *ruleService) Unassign(ctx context.Context, ruleID, promotionProjectID uuid.UUID) error {
	return s.rules.Unassign(ctx, ruleID, promotionProjectID)
}
