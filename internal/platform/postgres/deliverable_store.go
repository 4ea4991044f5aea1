package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/store"
)

// PostgresDeliverableStore implements store.DeliverableStore.
type PostgresDeliverableStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDeliverableStore creates a deliverable store over db.
func NewPostgresDeliverableStore(db store.DBTX, logger *slog.Logger) *PostgresDeliverableStore {
	mustDB(db)
	return &PostgresDeliverableStore{db: db, logger: componentLogger(logger, "deliverable_store")}
}

var _ store.DeliverableStore = (*PostgresDeliverableStore)(nil)

const deliverableColumns = `d.id, d.name, d.description, d.deadline, d.submitted_at, d.submission_comment,
	d.project_group_id, d.uploaded_by_student_id, d.archive_key, d.archive_file_name, d.archive_size,
	d.git_url, d.git_branch, d.created_at, d.updated_at`

func scanDeliverable(row rowScanner) (*domain.Deliverable, error) {
	var (
		d           domain.Deliverable
		archiveKey  sql.NullString
		archiveName sql.NullString
		archiveSize sql.NullInt64
		gitURL      sql.NullString
		gitBranch   sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Deadline, &d.SubmittedAt, &d.SubmissionComment,
		&d.ProjectGroupID, &d.UploadedByStudentID, &archiveKey, &archiveName, &archiveSize,
		&gitURL, &gitBranch, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if archiveKey.Valid {
		d.Archive = &domain.StoredFile{Key: archiveKey.String, FileName: archiveName.String, Size: archiveSize.Int64}
	}
	if gitURL.Valid {
		branch := gitBranch.String
		if branch == "" {
			branch = domain.DefaultGitBranch
		}
		d.GitRepo = &domain.GitRepo{URL: gitURL.String, Branch: branch}
	}
	return &d, nil
}

func gitArgs(r *domain.GitRepo) (url, branch any) {
	if r == nil {
		return nil, nil
	}
	return r.URL, r.Branch
}

func (s *PostgresDeliverableStore) Create(ctx context.Context, d *domain.Deliverable) error {
	key, name, size := fileArgs(d.Archive)
	gitURL, gitBranch := gitArgs(d.GitRepo)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliverables (id, name, description, deadline, submitted_at, submission_comment,
			project_group_id, uploaded_by_student_id, archive_key, archive_file_name, archive_size,
			git_url, git_branch, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.Name, d.Description, d.Deadline, d.SubmittedAt, d.SubmissionComment,
		d.ProjectGroupID, d.UploadedByStudentID, key, name, size, gitURL, gitBranch,
		d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrProjectGroupNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create deliverable",
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

func (s *PostgresDeliverableStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deliverable, error) {
	d, err := scanDeliverable(s.db.QueryRowContext(ctx,
		"SELECT "+deliverableColumns+" FROM deliverables d WHERE d.id = $1", id))
	if err != nil {
		return nil, notFound(err, store.ErrDeliverableNotFound)
	}
	return d, nil
}

func (s *PostgresDeliverableStore) Update(ctx context.Context, d *domain.Deliverable) error {
	key, name, size := fileArgs(d.Archive)
	gitURL, gitBranch := gitArgs(d.GitRepo)
	res, err := s.db.ExecContext(ctx, `
		UPDATE deliverables
		SET name = $1, description = $2, deadline = $3, submitted_at = $4, submission_comment = $5,
		    archive_key = $6, archive_file_name = $7, archive_size = $8, git_url = $9, git_branch = $10,
		    updated_at = $11
		WHERE id = $12`,
		d.Name, d.Description, d.Deadline, d.SubmittedAt, d.SubmissionComment,
		key, name, size, gitURL, gitBranch, d.UpdatedAt, d.ID)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrDeliverableNotFound)
}

func (s *PostgresDeliverableStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM deliverables WHERE id = $1", id)
	if err != nil {
		return MapError(err)
	}
	return expectRows(res, store.ErrDeliverableNotFound)
}

func (s *PostgresDeliverableStore) list(ctx context.Context, query string, arg any) ([]domain.Deliverable, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := []domain.Deliverable{}
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, *d)
	}
	return out, MapError(rows.Err())
}

func (s *PostgresDeliverableStore) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Deliverable, error) {
	return s.list(ctx, "SELECT "+deliverableColumns+
		" FROM deliverables d WHERE d.project_group_id = $1 ORDER BY d.created_at DESC", groupID)
}

func (s *PostgresDeliverableStore) ListByPromotionProject(ctx context.Context, promotionProjectID uuid.UUID) ([]domain.Deliverable, error) {
	return s.list(ctx, "SELECT "+deliverableColumns+`
		FROM deliverables d
		JOIN project_groups g ON g.id = d.project_group_id
		WHERE g.promotion_project_id = $1
		ORDER BY g.name, d.created_at`, promotionProjectID)
}

func (s *PostgresDeliverableStore) SaveRuleResults(
	ctx context.Context,
	deliverableID, groupID uuid.UUID,
	results []domain.RuleResult,
	validatedAt time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, r := range results {
		var details []byte
		if len(r.Details) > 0 {
			var err error
			if details, err = json.Marshal(r.Details); err != nil {
				return fmt.Errorf("failed to encode details of rule %s: %w", r.RuleID, err)
			}
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO deliverable_rule_results
				(deliverable_id, deliverable_rule_id, project_group_id, is_valid, message, details, validated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (deliverable_id, deliverable_rule_id) DO UPDATE
			SET is_valid = EXCLUDED.is_valid, message = EXCLUDED.message,
			    details = EXCLUDED.details, validated_at = EXCLUDED.validated_at`,
			deliverableID, r.RuleID, groupID, r.IsValid, r.Message, jsonArg(details), validatedAt)
		if err != nil {
			log.Error("failed to save rule result",
				slog.String("error", err.Error()),
				slog.String("deliverable_id", deliverableID.String()),
				slog.String("rule_id", r.RuleID.String()))
			return MapError(err)
		}
	}
	return nil
}

const ruleResultQuery = `
	SELECT rr.project_group_id, rr.deliverable_rule_id, r.rule_type, rr.is_valid, rr.message,
	       rr.details, rr.validated_at
	FROM deliverable_rule_results rr
	JOIN deliverable_rules r ON r.id = rr.deliverable_rule_id
`

func scanRuleResult(row rowScanner) (uuid.UUID, domain.RuleResult, time.Time, error) {
	var (
		groupID     uuid.UUID
		r           domain.RuleResult
		details     []byte
		validatedAt time.Time
	)
	if err := row.Scan(&groupID, &r.RuleID, &r.RuleType, &r.IsValid, &r.Message, &details, &validatedAt); err != nil {
		return groupID, r, validatedAt, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &r.Details); err != nil {
			return groupID, r, validatedAt, fmt.Errorf("failed to decode rule result details: %w", err)
		}
	}
	return groupID, r, validatedAt, nil
}

func (s *PostgresDeliverableStore) GetRuleResults(ctx context.Context, deliverableID uuid.UUID) ([]domain.RuleResult, *time.Time, error) {
	rows, err := s.db.QueryContext(ctx, ruleResultQuery+`
		WHERE rr.deliverable_id = $1
		ORDER BY r.created_at, r.id`, deliverableID)
	if err != nil {
		return nil, nil, MapError(err)
	}
	defer rows.Close()

	var (
		results = []domain.RuleResult{}
		latest  *time.Time
	)
	for rows.Next() {
		_, r, at, err := scanRuleResult(rows)
		if err != nil {
			return nil, nil, MapError(err)
		}
		if latest == nil || at.After(*latest) {
			t := at
			latest = &t
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, MapError(err)
	}
	return results, latest, nil
}

func (s *PostgresDeliverableStore) ListRuleResultsByPromotionProject(
	ctx context.Context,
	promotionProjectID uuid.UUID,
) (map[uuid.UUID][]domain.RuleResult, error) {
	rows, err := s.db.QueryContext(ctx, ruleResultQuery+`
		JOIN project_groups g ON g.id = rr.project_group_id
		WHERE g.promotion_project_id = $1
		ORDER BY g.name, r.created_at, r.id`, promotionProjectID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.RuleResult)
	for rows.Next() {
		groupID, r, _, err := scanRuleResult(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out[groupID] = append(out[groupID], r)
	}
	return out, MapError(rows.Err())
}

func (s *PostgresDeliverableStore) WithTx(tx *sql.Tx) store.DeliverableStore {
	return &PostgresDeliverableStore{db: tx, logger: s.logger}
}
