package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/email"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/service/auth"
	"github.com/mygeslike/api/internal/store"
)

// CreatePromotionInput is a new promotion.
type CreatePromotionInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// UpdatePromotionInput is a partial promotion update.
type UpdatePromotionInput struct {
	Name      *string
	StartDate *time.Time
	EndDate   *time.Time
}

// NewStudentInput is one row of a bulk student import.
type NewStudentInput struct {
	Email       string
	FirstName   string
	LastName    string
	PromotionID uuid.UUID
}

// MailSettings fills the links and names of outgoing mail.
type MailSettings struct {
	AppName  string
	LoginURL string
}

// PromotionService manages promotions and their students.
type PromotionService interface {
	List(ctx context.Context) ([]domain.Promotion, error)
	// GetDetailByName returns the promotion with its students and attached
	// promotion projects.
	GetDetailByName(ctx context.Context, name string) (*domain.PromotionDetail, error)
	Create(ctx context.Context, teacherID uuid.UUID, in CreatePromotionInput) (*domain.Promotion, error)
	Update(ctx context.Context, id uuid.UUID, in UpdatePromotionInput) (*domain.Promotion, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// AddStudents creates student accounts and enrolls them, all or
	// nothing. Each student's initial password is their email address.
	AddStudents(ctx context.Context, in []NewStudentInput) ([]domain.User, error)
}

type promotionService struct {
	promotions        store.PromotionStore
	promotionProjects store.PromotionProjectStore
	users             store.UserStore
	tx                store.TxManager
	hasher            auth.PasswordHasher
	mailer            email.Sender
	mail              MailSettings
	logger            *slog.Logger
	now               func() time.Time
}

// NewPromotionService creates a PromotionService.
func NewPromotionService(
	promotions store.PromotionStore,
	promotionProjects store.PromotionProjectStore,
	users store.UserStore,
	tx store.TxManager,
	hasher auth.PasswordHasher,
	mailer email.Sender,
	mail MailSettings,
	logger *slog.Logger,
) PromotionService {
	return &promotionService{
		promotions:        promotions,
		promotionProjects: promotionProjects,
		users:             users,
		tx:                tx,
		hasher:            hasher,
		mailer:            mailer,
		mail:              mail,
		logger:            logger.With("component", "promotion_service"),
		now:               time.Now,
	}
}

func (s *promotionService) List(ctx context.Context) ([]domain.Promotion, error) {
	return s.promotions.List(ctx)
}

func (s *promotionService) GetDetailByName(ctx context.Context, name string) (*domain.PromotionDetail, error) {
	p, err := s.promotions.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	students, err := s.promotions.ListStudents(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	pps, err := s.promotionProjects.ListByPromotion(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &domain.PromotionDetail{Promotion: *p, Students: students, PromotionProjects: pps}, nil
}

func (s *promotionService) Create(ctx context.Context, teacherID uuid.UUID, in CreatePromotionInput) (*domain.Promotion, error) {
	p, err := domain.NewPromotion(in.Name, in.StartDate, in.EndDate, teacherID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.promotions.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("promotion created",
		slog.String("promotion_id", p.ID.String()),
		slog.String("name", p.Name))
	return p, nil
}

func (s *promotionService) Update(ctx context.Context, id uuid.UUID, in UpdatePromotionInput) (*domain.Promotion, error) {
	p, err := s.promotions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	checkPast := false
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.StartDate != nil && !in.StartDate.Equal(p.StartDate) {
		p.StartDate = in.StartDate.UTC()
		checkPast = true
	}
	if in.EndDate != nil {
		p.EndDate = in.EndDate.UTC()
	}
	now := s.now()
	if err := p.Validate(now, checkPast); err != nil {
		return nil, err
	}
	p.UpdatedAt = now.UTC()

	if err := s.promotions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *promotionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.promotions.Delete(ctx, id)
}

func (s *promotionService) AddStudents(ctx context.Context, in []NewStudentInput) ([]domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	if len(in) == 0 {
		return nil, domain.NewValidationError("students", "cannot be empty", nil)
	}

	promotions := make(map[uuid.UUID]*domain.Promotion)
	users := make([]domain.User, 0, len(in))
	enrollments := make([]uuid.UUID, 0, len(in))
	now := s.now().UTC()

	for _, row := range in {
		if _, ok := promotions[row.PromotionID]; !ok {
			p, err := s.promotions.GetByID(ctx, row.PromotionID)
			if err != nil {
				return nil, err
			}
			promotions[row.PromotionID] = p
		}

		addr := domain.NormalizeEmail(row.Email)
		hash, err := s.hasher.Hash(addr)
		if err != nil {
			return nil, NewServiceError("promotion", "add_students", "failed to hash default password", err)
		}
		u := domain.User{
			ID:             uuid.New(),
			Email:          addr,
			FirstName:      strings.TrimSpace(row.FirstName),
			LastName:       strings.TrimSpace(row.LastName),
			Role:           domain.RoleStudent,
			ProfileID:      uuid.New(),
			HashedPassword: hash,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := u.Validate(); err != nil {
			return nil, err
		}
		users = append(users, u)
		enrollments = append(enrollments, row.PromotionID)
	}

	err := s.tx.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		userStore := s.users.WithTx(tx)
		promotionStore := s.promotions.WithTx(tx)
		for i := range users {
			if err := userStore.Create(ctx, &users[i]); err != nil {
				return err
			}
			if err := promotionStore.AddStudent(ctx, enrollments[i], users[i].ProfileID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !isExpected(err) {
			log.Error("failed to add students", slog.String("error", err.Error()))
			return nil, NewServiceError("promotion", "add_students", "failed to create students", err)
		}
		return nil, err
	}

	log.Info("students added", slog.Int("count", len(users)))
	s.notifyCreated(ctx, users, enrollments, promotions)
	return users, nil
}

func (s *promotionService) notifyCreated(ctx context.Context, users []domain.User, enrollments []uuid.UUID, promotions map[uuid.UUID]*domain.Promotion) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	msgs := make([]email.Message, 0, len(users))
	for i, u := range users {
		msg, err := email.AccountCreated(email.AccountCreatedData{
			AppName:       s.mail.AppName,
			FirstName:     u.FirstName,
			LastName:      u.LastName,
			Email:         u.Email,
			PromotionName: promotions[enrollments[i]].Name,
			LoginURL:      s.mail.LoginURL,
		})
		if err != nil {
			log.Error("failed to render account email", slog.String("error", err.Error()))
			continue
		}
		msgs = append(msgs, msg)
	}
	email.SendAsync(s.mailer, log, msgs...)
}
