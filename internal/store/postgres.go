package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sitesmithapp/sitesmith/internal/db"
	"github.com/sitesmithapp/sitesmith/internal/models"
)

const (
	websiteColumns    = `id, user_id, name, last_published_at, last_deployed_at, last_successful_deployment_id, created_at, updated_at`
	deploymentColumns = `id, website_id, user_id, status, version, commit_message, build_time, completed_at, deployment_url, build_logs, error_message, retry_of, created_at, updated_at`
	domainColumns     = `id, website_id, user_id, name, status, verification_status, verification_errors, verification_token, is_primary, dns_records, last_verified_at, created_at, updated_at`
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// Postgres is the production Store.
type Postgres struct {
	pgRepo
	client *db.PostgresClient
}

func NewPostgres(client *db.PostgresClient) *Postgres {
	return &Postgres{pgRepo: pgRepo{q: client}, client: client}
}

func (s *Postgres) InTx(ctx context.Context, fn func(Repo) error) error {
	tx, err := s.client.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(ctx)

	if err := fn(&pgRepo{q: tx, lock: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgRepo struct {
	q    db.Querier
	lock bool
}

func (r *pgRepo) forUpdate() string {
	if r.lock {
		return " FOR UPDATE"
	}
	return ""
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *pgRepo) EnsureUser(ctx context.Context, id, email string) error {
	query := `
		INSERT INTO users (id, email, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, query, id, email); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

func scanWebsite(row scanner) (*models.Website, error) {
	w := &models.Website{}
	err := row.Scan(
		&w.ID, &w.UserID, &w.Name, &w.LastPublishedAt, &w.LastDeployedAt,
		&w.LastSuccessfulDeploymentID, &w.CreatedAt, &w.UpdatedAt,
	)
	return w, err
}

func (r *pgRepo) CreateWebsite(ctx context.Context, w *models.Website) error {
	query := `
		INSERT INTO websites (id, user_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.q.Exec(ctx, query, w.ID, w.UserID, w.Name, w.CreatedAt, w.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create website: %w", err)
	}
	return nil
}

func (r *pgRepo) GetWebsite(ctx context.Context, id string) (*models.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE id = $1` + r.forUpdate()
	w, err := scanWebsite(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "website")
	}
	return w, nil
}

func (r *pgRepo) ListWebsites(ctx context.Context, userID string) ([]*models.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	defer rows.Close()

	websites := []*models.Website{}
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan website: %w", err)
		}
		websites = append(websites, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating websites: %w", err)
	}
	return websites, nil
}

func (r *pgRepo) UpdateWebsite(ctx context.Context, id string, upd models.WebsiteUpdate, now time.Time) (*models.Website, error) {
	args := []interface{}{}
	setClauses := []string{}
	set := func(column string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.LastPublishedAt != nil {
		set("last_published_at", *upd.LastPublishedAt)
	}
	if upd.LastDeployedAt != nil {
		set("last_deployed_at", *upd.LastDeployedAt)
	}
	if upd.ClearLastSuccessfulDeployment {
		set("last_successful_deployment_id", nil)
	} else if upd.LastSuccessfulDeploymentID != nil {
		set("last_successful_deployment_id", *upd.LastSuccessfulDeploymentID)
	}
	set("updated_at", now)

	args = append(args, id)
	query := `UPDATE websites SET ` + strings.Join(setClauses, ", ") +
		fmt.Sprintf(" WHERE id = $%d RETURNING ", len(args)) + websiteColumns

	w, err := scanWebsite(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "website")
	}
	return w, nil
}

func (r *pgRepo) DeleteWebsite(ctx context.Context, id string) error {
	n, err := r.q.Exec(ctx, `DELETE FROM websites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete website: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("website %w", ErrNotFound)
	}
	return nil
}

func (r *pgRepo) NextDeploymentVersion(ctx context.Context, websiteID string) (int, error) {
	var maxVersion int
	query := `SELECT COALESCE(MAX(version), 0) FROM deployments WHERE website_id = $1`
	if err := r.q.QueryRow(ctx, query, websiteID).Scan(&maxVersion); err != nil {
		return 0, fmt.Errorf("failed to get max version: %w", err)
	}
	return maxVersion + 1, nil
}

func scanDeployment(row scanner) (*models.Deployment, error) {
	d := &models.Deployment{}
	var status string
	err := row.Scan(
		&d.ID, &d.WebsiteID, &d.UserID, &status, &d.Version, &d.CommitMessage,
		&d.BuildTime, &d.CompletedAt, &d.DeploymentURL, &d.BuildLogs,
		&d.ErrorMessage, &d.RetryOf, &d.CreatedAt, &d.UpdatedAt,
	)
	d.Status = models.DeploymentStatus(status)
	return d, err
}

func (r *pgRepo) CreateDeployment(ctx context.Context, d *models.Deployment) error {
	query := `
		INSERT INTO deployments (` + deploymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.q.Exec(ctx, query,
		d.ID, d.WebsiteID, d.UserID, string(d.Status), d.Version, d.CommitMessage,
		d.BuildTime, d.CompletedAt, d.DeploymentURL, d.BuildLogs,
		d.ErrorMessage, d.RetryOf, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deployment: %w", err)
	}
	return nil
}

func (r *pgRepo) GetDeployment(ctx context.Context, id string) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = $1` + r.forUpdate()
	d, err := scanDeployment(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "deployment")
	}
	return d, nil
}

func (r *pgRepo) ListDeployments(ctx context.Context, websiteID string, limit, offset int) ([]*models.Deployment, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM deployments WHERE website_id = $1`, websiteID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count deployments: %w", err)
	}

	query := `
		SELECT ` + deploymentColumns + `
		FROM deployments
		WHERE website_id = $1
		ORDER BY created_at DESC, version DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.q.Query(ctx, query, websiteID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	deployments := []*models.Deployment{}
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating deployments: %w", err)
	}
	return deployments, total, nil
}

func (r *pgRepo) UpdateDeployment(ctx context.Context, d *models.Deployment) error {
	query := `
		UPDATE deployments
		SET status = $2, build_time = $3, completed_at = $4, deployment_url = $5,
		    build_logs = $6, error_message = $7, updated_at = $8
		WHERE id = $1
	`
	n, err := r.q.Exec(ctx, query,
		d.ID, string(d.Status), d.BuildTime, d.CompletedAt, d.DeploymentURL,
		d.BuildLogs, d.ErrorMessage, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update deployment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deployment %w", ErrNotFound)
	}
	return nil
}

func (r *pgRepo) DeleteDeployment(ctx context.Context, id string) error {
	n, err := r.q.Exec(ctx, `DELETE FROM deployments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deployment %w", ErrNotFound)
	}
	return nil
}

func scanDomain(row scanner) (*models.Domain, error) {
	d := &models.Domain{}
	var status, verification string
	var records []byte
	err := row.Scan(
		&d.ID, &d.WebsiteID, &d.UserID, &d.Name, &status, &verification,
		&d.VerificationErrors, &d.VerificationToken, &d.IsPrimary, &records,
		&d.LastVerifiedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = models.DomainStatus(status)
	d.VerificationStatus = models.VerificationStatus(verification)
	if len(records) > 0 {
		if err := json.Unmarshal(records, &d.DNSRecords); err != nil {
			return nil, fmt.Errorf("failed to decode dns records: %w", err)
		}
	}
	return d, nil
}

func encodeRecords(records []models.DNSRecord) (string, error) {
	if records == nil {
		records = []models.DNSRecord{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode dns records: %w", err)
	}
	return string(b), nil
}

func (r *pgRepo) CreateDomain(ctx context.Context, d *models.Domain) error {
	records, err := encodeRecords(d.DNSRecords)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO domains (` + domainColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13)
	`
	_, err = r.q.Exec(ctx, query,
		d.ID, d.WebsiteID, d.UserID, d.Name, string(d.Status), string(d.VerificationStatus),
		d.VerificationErrors, d.VerificationToken, d.IsPrimary, records,
		d.LastVerifiedAt, d.CreatedAt, d.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("domain %s %w", d.Name, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create domain: %w", err)
	}
	return nil
}

func (r *pgRepo) GetDomain(ctx context.Context, id string) (*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE id = $1` + r.forUpdate()
	d, err := scanDomain(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "domain")
	}
	return d, nil
}

func (r *pgRepo) ListDomains(ctx context.Context, websiteID string) ([]*models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE website_id = $1 ORDER BY created_at ASC` + r.forUpdate()
	rows, err := r.q.Query(ctx, query, websiteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	domains := []*models.Domain{}
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domains: %w", err)
	}
	return domains, nil
}

func (r *pgRepo) UpdateDomain(ctx context.Context, d *models.Domain) error {
	records, err := encodeRecords(d.DNSRecords)
	if err != nil {
		return err
	}
	query := `
		UPDATE domains
		SET status = $2, verification_status = $3, verification_errors = $4,
		    is_primary = $5, dns_records = $6::jsonb, last_verified_at = $7, updated_at = $8
		WHERE id = $1
	`
	n, err := r.q.Exec(ctx, query,
		d.ID, string(d.Status), string(d.VerificationStatus), d.VerificationErrors,
		d.IsPrimary, records, d.LastVerifiedAt, d.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("primary domain for website %s %w", d.WebsiteID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update domain: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("domain %w", ErrNotFound)
	}
	return nil
}

func (r *pgRepo) DeleteDomain(ctx context.Context, id string) error {
	n, err := r.q.Exec(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("domain %w", ErrNotFound)
	}
	return nil
}
