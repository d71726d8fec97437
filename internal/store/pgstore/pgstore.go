// Package pgstore persists charges and merchant API keys with raw SQL
// over a pgx connection pool. It serves postgres deployments natively;
// sqlite deployments use gormstore instead.
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barkdesk/barkdesk/pkg/charges"
)

const (
	constraintChargePaymentHash = "charges_payment_hash_key"
	pgUniqueViolationCode       = "23505"
	errorOperationStore         = "store"
	errorSubjectCharge          = "charge"
	errorSubjectAPIKey          = "api_key"
	errorCodeCreate             = "create"
	errorCodeDuplicate          = "duplicate"
	errorCodeGet                = "get"
	errorCodeInsert             = "insert"
	errorCodeInvalid            = "invalid"
	errorCodeList               = "list"
	errorCodeLookup             = "lookup"
	errorCodeMarkPaid           = "mark_paid"
	errorCodeMigrate            = "migrate"
	errorCodeWebhook            = "webhook_status"

	sqlCreateCharges = `
		create table if not exists charges(
			charge_id uuid primary key default gen_random_uuid(),
			amount_sat bigint not null,
			description text not null default '',
			webhook_url text,
			status text not null default 'pending',
			webhook_status text not null default 'pending',
			payment_hash text not null unique,
			invoice text not null,
			metadata jsonb not null default '{}'::jsonb,
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now()
		)
	`

	sqlCreateAPIKeys = `
		create table if not exists api_keys(
			api_key_id uuid primary key default gen_random_uuid(),
			key text not null unique,
			label text not null default '',
			is_active boolean not null default true,
			created_at timestamptz not null default now()
		)
	`

	sqlInsertCharge = `
		insert into charges(
			amount_sat, description, webhook_url, payment_hash, invoice, metadata
		)
		values($1, $2, nullif($3,''), $4, $5, coalesce(nullif($6,''),'{}')::jsonb)
		returning charge_id::text
	`

	sqlSelectCharge = `
		select
			charge_id::text,
			amount_sat,
			description,
			coalesce(webhook_url,''),
			status,
			webhook_status,
			payment_hash,
			invoice,
			metadata::text,
			created_at,
			updated_at
		from charges
		where charge_id = $1::uuid
	`

	sqlListPendingCharges = `
		select
			charge_id::text,
			amount_sat,
			description,
			coalesce(webhook_url,''),
			status,
			webhook_status,
			payment_hash,
			invoice,
			metadata::text,
			created_at,
			updated_at
		from charges
		where status = 'pending'
		order by created_at asc
	`

	sqlMarkChargePaid = `
		update charges
		set status = 'paid', updated_at = now()
		where charge_id = $1::uuid and status = 'pending'
	`

	sqlSetWebhookStatus = `
		update charges
		set webhook_status = $2, updated_at = now()
		where charge_id = $1::uuid and webhook_status = 'pending'
	`

	sqlFindActiveAPIKey = `
		select is_active from api_keys where key = $1
	`

	sqlInsertAPIKey = `
		insert into api_keys(key, label, is_active) values($1, $2, $3)
	`
)

// Store implements charges.Store using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the charges and api_keys tables when absent.
func (store *Store) Migrate(ctx context.Context) error {
	if _, err := store.pool.Exec(ctx, sqlCreateCharges); err != nil {
		return wrapStoreError(errorSubjectCharge, errorCodeMigrate, err)
	}
	if _, err := store.pool.Exec(ctx, sqlCreateAPIKeys); err != nil {
		return wrapStoreError(errorSubjectAPIKey, errorCodeMigrate, err)
	}
	return nil
}

func (store *Store) CreateCharge(ctx context.Context, input charges.NewChargeInput) (charges.Charge, error) {
	var chargeID string
	err := store.pool.QueryRow(ctx, sqlInsertCharge,
		input.AmountSat.Int64(),
		input.Description,
		input.WebhookURL.String(),
		input.PaymentHash.String(),
		input.Invoice,
		input.Metadata.String(),
	).Scan(&chargeID)
	if isPaymentHashConflict(err) {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeDuplicate, charges.ErrDuplicatePaymentHash)
	}
	if err != nil {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeCreate, err)
	}
	return store.GetCharge(ctx, chargeID)
}

func (store *Store) GetCharge(ctx context.Context, chargeID string) (charges.Charge, error) {
	row := store.pool.QueryRow(ctx, sqlSelectCharge, chargeID)
	charge, err := scanCharge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeGet, charges.ErrChargeNotFound)
		}
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeGet, err)
	}
	return charge, nil
}

func (store *Store) ListPendingCharges(ctx context.Context) ([]charges.Charge, error) {
	rows, err := store.pool.Query(ctx, sqlListPendingCharges)
	if err != nil {
		return nil, wrapStoreError(errorSubjectCharge, errorCodeList, err)
	}
	defer rows.Close()

	pending := make([]charges.Charge, 0)
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCharge, errorCodeInvalid, err)
		}
		pending = append(pending, charge)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectCharge, errorCodeList, err)
	}
	return pending, nil
}

func (store *Store) MarkChargePaid(ctx context.Context, chargeID string) (charges.Charge, bool, error) {
	tag, err := store.pool.Exec(ctx, sqlMarkChargePaid, chargeID)
	if err != nil {
		return charges.Charge{}, false, wrapStoreError(errorSubjectCharge, errorCodeMarkPaid, err)
	}
	won := tag.RowsAffected() > 0
	charge, err := store.GetCharge(ctx, chargeID)
	if err != nil {
		return charges.Charge{}, false, err
	}
	return charge, won, nil
}

func (store *Store) SetWebhookStatus(ctx context.Context, chargeID string, status charges.WebhookStatus) error {
	// Guarded from pending only: the first recorded outcome sticks.
	_, err := store.pool.Exec(ctx, sqlSetWebhookStatus, chargeID, status.String())
	if err != nil {
		return wrapStoreError(errorSubjectCharge, errorCodeWebhook, err)
	}
	return nil
}

func (store *Store) FindActiveAPIKey(ctx context.Context, key string) (bool, error) {
	var isActive bool
	err := store.pool.QueryRow(ctx, sqlFindActiveAPIKey, key).Scan(&isActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapStoreError(errorSubjectAPIKey, errorCodeLookup, err)
	}
	return isActive, nil
}

// InsertAPIKey provisions a merchant key. Used by the CLI.
func (store *Store) InsertAPIKey(ctx context.Context, key string, label string, active bool) error {
	if _, err := store.pool.Exec(ctx, sqlInsertAPIKey, key, label, active); err != nil {
		return wrapStoreError(errorSubjectAPIKey, errorCodeInsert, err)
	}
	return nil
}

func scanCharge(row pgx.Row) (charges.Charge, error) {
	var (
		chargeID      string
		amountValue   int64
		description   string
		webhookValue  string
		statusValue   string
		webhookStatus string
		hashValue     string
		invoice       string
		metadataValue string
		createdAt     time.Time
		updatedAt     time.Time
	)
	err := row.Scan(
		&chargeID,
		&amountValue,
		&description,
		&webhookValue,
		&statusValue,
		&webhookStatus,
		&hashValue,
		&invoice,
		&metadataValue,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return charges.Charge{}, err
	}
	amount, err := charges.NewAmountSat(amountValue)
	if err != nil {
		return charges.Charge{}, err
	}
	webhookURL, err := charges.NewWebhookURL(webhookValue)
	if err != nil {
		return charges.Charge{}, err
	}
	status, err := charges.ParseChargeStatus(statusValue)
	if err != nil {
		return charges.Charge{}, err
	}
	deliveryStatus, err := charges.ParseWebhookStatus(webhookStatus)
	if err != nil {
		return charges.Charge{}, err
	}
	paymentHash, err := charges.NewPaymentHash(hashValue)
	if err != nil {
		return charges.Charge{}, err
	}
	metadata, err := charges.NewMetadataJSON(metadataValue)
	if err != nil {
		return charges.Charge{}, err
	}
	return charges.Charge{
		ID:            chargeID,
		AmountSat:     amount,
		Description:   description,
		WebhookURL:    webhookURL,
		Status:        status,
		WebhookStatus: deliveryStatus,
		PaymentHash:   paymentHash,
		Invoice:       invoice,
		Metadata:      metadata,
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     updatedAt.UTC(),
	}, nil
}

func isPaymentHashConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintChargePaymentHash
}

func wrapStoreError(subject string, code string, err error) error {
	return charges.WrapError(errorOperationStore, subject, code, err)
}
