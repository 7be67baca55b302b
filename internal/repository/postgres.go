package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"

	"github.com/fjod/go_checkout/domain"
)

const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "checkout_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// intentRow holds the JSON columns of a payment_intents row.
type intentRow struct {
	cart   []byte
	result []byte
}

func encodeIntent(intent *domain.PaymentIntent) (intentRow, error) {
	var row intentRow
	cart, err := json.Marshal(intent.Cart.ToSnapshot())
	if err != nil {
		return row, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	row.cart = cart
	if intent.Result != nil {
		result, err := json.Marshal(intent.Result)
		if err != nil {
			return row, fmt.Errorf("marshal payment result: %w", err)
		}
		row.result = result
	}
	return row, nil
}

func (r *Repository) SaveIntent(ctx context.Context, intent *domain.PaymentIntent) error {
	row, err := encodeIntent(intent)
	if err != nil {
		return err
	}

	query := `INSERT INTO payment_intents (id, status, cart_snapshot, total_amount, currency, description,
	              success_url, cancel_url, redirect_url, session_token, authorization_ref, payer_id,
	              failure_reason, result, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	total := intent.Total()
	_, insertErr := r.db.ExecContext(ctx, query,
		intent.ID,
		intent.Status,
		row.cart,
		total.Amount,
		total.Currency,
		intent.Description,
		intent.SuccessURL,
		intent.CancelURL,
		intent.RedirectURL,
		intent.SessionToken,
		intent.AuthorizationRef,
		intent.PayerID,
		intent.FailureReason,
		row.result,
		intent.CreatedAt,
		intent.UpdatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrIntentExists
		}
		return fmt.Errorf("insert payment intent: %w", insertErr)
	}
	return nil
}

func (r *Repository) GetIntent(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	query := `SELECT id, status, cart_snapshot, description, success_url, cancel_url, redirect_url,
	                 session_token, authorization_ref, payer_id, failure_reason, result, created_at, updated_at
	          FROM payment_intents WHERE id = $1`

	return scanIntent(r.db.QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(s rowScanner) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	var cartJSON, resultJSON []byte
	err := s.Scan(
		&intent.ID,
		&intent.Status,
		&cartJSON,
		&intent.Description,
		&intent.SuccessURL,
		&intent.CancelURL,
		&intent.RedirectURL,
		&intent.SessionToken,
		&intent.AuthorizationRef,
		&intent.PayerID,
		&intent.FailureReason,
		&resultJSON,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment intent: %w", err)
	}

	var snapshot domain.CartSnapshot
	if err := json.Unmarshal(cartJSON, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	cart, err := domain.CartFromSnapshot(snapshot)
	if err != nil {
		return nil, fmt.Errorf("restore cart snapshot: %w", err)
	}
	intent.Cart = cart

	if len(resultJSON) > 0 {
		var details domain.PaymentDetails
		if err := json.Unmarshal(resultJSON, &details); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		intent.Result = &details
	}
	return &intent, nil
}

func (r *Repository) UpdateIntent(ctx context.Context, intent *domain.PaymentIntent, expected domain.IntentStatus) error {
	row, err := encodeIntent(intent)
	if err != nil {
		return err
	}

	query := `UPDATE payment_intents
	          SET status = $2, redirect_url = $3, session_token = $4, authorization_ref = $5,
	              payer_id = $6, failure_reason = $7, result = $8, updated_at = $9
	          WHERE id = $1 AND status = $10`

	res, err := r.db.ExecContext(ctx, query,
		intent.ID,
		intent.Status,
		intent.RedirectURL,
		intent.SessionToken,
		intent.AuthorizationRef,
		intent.PayerID,
		intent.FailureReason,
		row.result,
		intent.UpdatedAt,
		expected)
	if err != nil {
		return fmt.Errorf("update payment intent: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment intent: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_intents WHERE id = $1)`, intent.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check payment intent: %w", err)
	}
	if !exists {
		return domain.ErrIntentNotFound
	}
	return ErrStaleIntent
}

// OnPaymentExecuted inserts the executed payment and its outbox event in one transaction.
func (r *Repository) OnPaymentExecuted(ctx context.Context, intentID string, details *domain.PaymentDetails) error {
	executedAt := time.Now().UTC()
	payload, err := newExecutedPayload(intentID, details, executedAt)
	if err != nil {
		return fmt.Errorf("marshal executed payment: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO executed_payments (intent_id, sale_id, payer_id, amount, currency, details, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (intent_id) DO NOTHING`,
		intentID,
		details.SaleID,
		details.PayerID,
		details.Amount.Amount,
		details.Amount.Currency,
		payload,
		executedAt)
	if err != nil {
		return fmt.Errorf("insert executed payment: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert executed payment: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4)`,
		intentID, EventPaymentExecuted, payload, executedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events
	          WHERE processed_at IS NULL
	          ORDER BY id
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateId, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d: %w", id, err)
	}
	return nil
}

func (r *Repository) GetUnrecordedExecutions(ctx context.Context, limit int) ([]*domain.PaymentIntent, error) {
	query := `SELECT i.id, i.status, i.cart_snapshot, i.description, i.success_url, i.cancel_url, i.redirect_url,
	                 i.session_token, i.authorization_ref, i.payer_id, i.failure_reason, i.result, i.created_at, i.updated_at
	          FROM payment_intents i
	          LEFT JOIN executed_payments e ON e.intent_id = i.id
	          WHERE i.status = $1 AND e.intent_id IS NULL
	          ORDER BY i.updated_at
	          LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, domain.IntentStatusExecuted, limit)
	if err != nil {
		return nil, fmt.Errorf("query unrecorded executions: %w", err)
	}
	defer rows.Close()

	var intents []*domain.PaymentIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return intents, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
