package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

type TransactionRepositoryAdapter struct {
	db *sqlx.DB
}

func NewTransactionRepositoryAdapter(db *sqlx.DB) *TransactionRepositoryAdapter {
	return &TransactionRepositoryAdapter{db: db}
}

const transactionColumns = `id, user_id, deal_id, milestone_index, type, amount, status, provider_ref,
	provider_tx_id, created_at, settled_at`

// Create ничего не делает, если запись с таким provider_ref уже есть.
func (r *TransactionRepositoryAdapter) Create(ctx context.Context, tx *entity.WalletTransaction) (bool, error) {
	query := `
		INSERT INTO wallet_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider_ref) DO NOTHING
	`
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		tx.ID, tx.UserID, tx.DealID, tx.MilestoneIndex, string(tx.Type), tx.Amount,
		string(tx.Status), tx.ProviderRef, tx.ProviderTxID, tx.CreatedAt, tx.SettledAt,
	)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить транзакцию")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат вставки")
	}
	return rows > 0, nil
}

func (r *TransactionRepositoryAdapter) FindByProviderRef(ctx context.Context, providerRef string) (*entity.WalletTransaction, error) {
	var row transactionRow
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE provider_ref = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &row, query, providerRef); err != nil {
		if notFound(err) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить транзакцию")
	}
	return row.toEntity(), nil
}

// MarkSettled меняет статус только у pending записи.
func (r *TransactionRepositoryAdapter) MarkSettled(ctx context.Context, providerRef string, status valueobject.TransactionStatus, providerTxID string, at time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, apperror.New(apperror.ErrCodeValidation, "некорректный итоговый статус транзакции")
	}
	query := `
		UPDATE wallet_transactions
		SET status = $2, provider_tx_id = COALESCE(NULLIF($3, ''), provider_tx_id), settled_at = $4
		WHERE provider_ref = $1 AND status = $5
	`
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		providerRef, string(status), providerTxID, at, string(valueobject.TransactionStatusPending))
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить транзакцию")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат обновления")
	}
	if rows == 0 {
		if _, err := r.FindByProviderRef(ctx, providerRef); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *TransactionRepositoryAdapter) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, int, error) {
	exec := conn(ctx, r.db)

	var total int
	if err := exec.GetContext(ctx, &total, `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать транзакции")
	}

	var rows []transactionRow
	query := `
		SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`
	if err := exec.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить транзакции")
	}
	return toTransactions(rows), total, nil
}

func (r *TransactionRepositoryAdapter) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*entity.WalletTransaction, error) {
	var rows []transactionRow
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE deal_id = $1 ORDER BY created_at`
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, query, dealID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить транзакции сделки")
	}
	return toTransactions(rows), nil
}

type transactionRow struct {
	ID             uuid.UUID       `db:"id"`
	UserID         uuid.UUID       `db:"user_id"`
	DealID         *uuid.UUID      `db:"deal_id"`
	MilestoneIndex *int            `db:"milestone_index"`
	Type           string          `db:"type"`
	Amount         decimal.Decimal `db:"amount"`
	Status         string          `db:"status"`
	ProviderRef    string          `db:"provider_ref"`
	ProviderTxID   string          `db:"provider_tx_id"`
	CreatedAt      time.Time       `db:"created_at"`
	SettledAt      *time.Time      `db:"settled_at"`
}

func (r *transactionRow) toEntity() *entity.WalletTransaction {
	return &entity.WalletTransaction{
		ID:             r.ID,
		UserID:         r.UserID,
		DealID:         r.DealID,
		MilestoneIndex: r.MilestoneIndex,
		Type:           valueobject.TransactionType(r.Type),
		Amount:         r.Amount,
		Status:         valueobject.TransactionStatus(r.Status),
		ProviderRef:    r.ProviderRef,
		ProviderTxID:   r.ProviderTxID,
		CreatedAt:      r.CreatedAt,
		SettledAt:      r.SettledAt,
	}
}

func toTransactions(rows []transactionRow) []*entity.WalletTransaction {
	result := make([]*entity.WalletTransaction, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toEntity())
	}
	return result
}

// prefixed добавляет псевдоним таблицы к списку колонок.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
