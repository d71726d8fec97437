package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/barkdesk/barkdesk/pkg/charges"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultMetadataJSON   = "{}"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	errorOperationStore   = "store"
	errorSubjectCharge    = "charge"
	errorSubjectAPIKey    = "api_key"
	errorCodeCreate       = "create"
	errorCodeDuplicate    = "duplicate"
	errorCodeGet          = "get"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeLookup       = "lookup"
	errorCodeMarkPaid     = "mark_paid"
	errorCodeWebhook      = "webhook_status"
)

// Store implements charges.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func (store *Store) Migrate() error {
	return store.db.AutoMigrate(&Charge{}, &APIKey{})
}

func (store *Store) CreateCharge(ctx context.Context, input charges.NewChargeInput) (charges.Charge, error) {
	var webhookURL *string
	if input.WebhookURL.IsSet() {
		value := input.WebhookURL.String()
		webhookURL = &value
	}
	model := Charge{
		AmountSat:     input.AmountSat.Int64(),
		Description:   input.Description,
		WebhookURL:    webhookURL,
		Status:        charges.ChargeStatusPending.String(),
		WebhookStatus: charges.WebhookStatusPending.String(),
		PaymentHash:   input.PaymentHash.String(),
		Invoice:       input.Invoice,
		Metadata:      datatypesJSON(input.Metadata.String()),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeDuplicate, charges.ErrDuplicatePaymentHash)
	}
	if err != nil {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeCreate, err)
	}
	return mapCharge(model)
}

func (store *Store) GetCharge(ctx context.Context, chargeID string) (charges.Charge, error) {
	var model Charge
	err := store.db.WithContext(ctx).
		Where("charge_id = ?", chargeID).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeGet, charges.ErrChargeNotFound)
		}
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeGet, err)
	}
	return mapCharge(model)
}

func (store *Store) ListPendingCharges(ctx context.Context) ([]charges.Charge, error) {
	var rows []Charge
	err := store.db.WithContext(ctx).
		Where("status = ?", charges.ChargeStatusPending.String()).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCharge, errorCodeList, err)
	}
	pending := make([]charges.Charge, 0, len(rows))
	for _, row := range rows {
		charge, mapErr := mapCharge(row)
		if mapErr != nil {
			return nil, mapErr
		}
		pending = append(pending, charge)
	}
	return pending, nil
}

// MarkChargePaid performs the guarded forward transition. The
// conditional update is what keeps overlapping reconciliation passes
// safe: exactly one caller observes an affected row and owns the
// webhook dispatch.
func (store *Store) MarkChargePaid(ctx context.Context, chargeID string) (charges.Charge, bool, error) {
	result := store.db.WithContext(ctx).
		Model(&Charge{}).
		Where("charge_id = ? AND status = ?", chargeID, charges.ChargeStatusPending.String()).
		Updates(map[string]any{
			"status":     charges.ChargeStatusPaid.String(),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return charges.Charge{}, false, wrapStoreError(errorSubjectCharge, errorCodeMarkPaid, result.Error)
	}
	won := result.RowsAffected > 0
	charge, err := store.GetCharge(ctx, chargeID)
	if err != nil {
		return charges.Charge{}, false, err
	}
	return charge, won, nil
}

// SetWebhookStatus records the delivery outcome once; a repeat call
// after the status left pending is a no-op.
func (store *Store) SetWebhookStatus(ctx context.Context, chargeID string, status charges.WebhookStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Charge{}).
		Where("charge_id = ? AND webhook_status = ?", chargeID, charges.WebhookStatusPending.String()).
		Updates(map[string]any{
			"webhook_status": status.String(),
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCharge, errorCodeWebhook, result.Error)
	}
	return nil
}

func (store *Store) FindActiveAPIKey(ctx context.Context, key string) (bool, error) {
	var model APIKey
	err := store.db.WithContext(ctx).
		Where("key = ? AND is_active = ?", key, true).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, wrapStoreError(errorSubjectAPIKey, errorCodeLookup, err)
	}
	return true, nil
}

// InsertAPIKey provisions a merchant key. Used by the CLI key command
// and by tests.
func (store *Store) InsertAPIKey(ctx context.Context, key string, label string, active bool) error {
	model := APIKey{Key: key, Label: label, IsActive: active}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectAPIKey, errorCodeCreate, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return charges.WrapError(errorOperationStore, subject, code, err)
}

func mapCharge(model Charge) (charges.Charge, error) {
	amount, err := charges.NewAmountSat(model.AmountSat)
	if err != nil {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeInvalid, err)
	}
	status, err := charges.ParseChargeStatus(model.Status)
	if err != nil {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeInvalid, err)
	}
	webhookStatus, err := charges.ParseWebhookStatus(model.WebhookStatus)
	if err != nil {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeInvalid, err)
	}
	paymentHash, err := charges.NewPaymentHash(model.PaymentHash)
	if err != nil {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeInvalid, err)
	}
	var rawWebhookURL string
	if model.WebhookURL != nil {
		rawWebhookURL = *model.WebhookURL
	}
	webhookURL, err := charges.NewWebhookURL(rawWebhookURL)
	if err != nil {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeInvalid, err)
	}
	metadata, err := charges.NewMetadataJSON(string(model.Metadata))
	if err != nil {
		return charges.Charge{}, wrapStoreError(errorSubjectCharge, errorCodeInvalid, err)
	}
	return charges.Charge{
		ID:            model.ChargeID,
		AmountSat:     amount,
		Description:   model.Description,
		WebhookURL:    webhookURL,
		Status:        status,
		WebhookStatus: webhookStatus,
		PaymentHash:   paymentHash,
		Invoice:       model.Invoice,
		Metadata:      metadata,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
