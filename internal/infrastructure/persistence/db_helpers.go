package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// executor общий интерфейс *sqlx.DB и *sqlx.Tx.
type executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type txKey struct{}

// conn возвращает транзакцию из контекста, если она открыта, иначе пул.
func conn(ctx context.Context, db *sqlx.DB) executor {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// WithTransaction выполняет fn в транзакции. Репозитории, вызванные
// с переданным в fn контекстом, пишут в ту же транзакцию. Вложенный
// вызов присоединяется к внешней транзакции.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// BatchInserter накапливает строки и вставляет их одним запросом.
type BatchInserter struct {
	exec        executor
	query       string
	batchSize   int
	values      []interface{}
	rowCount    int
	fieldsCount int
}

func NewBatchInserter(exec executor, baseQuery string, fieldsCount int, batchSize int) *BatchInserter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BatchInserter{
		exec:        exec,
		query:       baseQuery,
		batchSize:   batchSize,
		values:      make([]interface{}, 0, batchSize*fieldsCount),
		fieldsCount: fieldsCount,
	}
}

func (bi *BatchInserter) Add(ctx context.Context, rowValues ...interface{}) error {
	if len(rowValues) != bi.fieldsCount {
		return fmt.Errorf("expected %d fields, got %d", bi.fieldsCount, len(rowValues))
	}
	bi.values = append(bi.values, rowValues...)
	bi.rowCount++
	if bi.rowCount >= bi.batchSize {
		return bi.Flush(ctx)
	}
	return nil
}

func (bi *BatchInserter) Flush(ctx context.Context) error {
	if bi.rowCount == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(bi.query)
	sb.WriteString(" VALUES ")
	for i := 0; i < bi.rowCount; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < bi.fieldsCount; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*bi.fieldsCount+j+1)
		}
		sb.WriteString(")")
	}

	if _, err := bi.exec.ExecContext(ctx, sb.String(), bi.values...); err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}

	bi.values = bi.values[:0]
	bi.rowCount = 0
	return nil
}

const uniqueViolation = "23505"

// isUniqueViolation сообщает о нарушении уникального индекса, опционально конкретного.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// jsonColumn хранит значение в колонке JSONB.
type jsonColumn[T any] struct {
	V     T
	Valid bool
}

func jsonOf[T any](v T) jsonColumn[T] {
	return jsonColumn[T]{V: v, Valid: true}
}

func (c jsonColumn[T]) Value() (driver.Value, error) {
	if !c.Valid {
		return nil, nil
	}
	raw, err := json.Marshal(c.V)
	if err != nil {
		return nil, err
	}
	// lib/pq отправляет []byte как bytea, JSONB нужна строка.
	return string(raw), nil
}

func (c *jsonColumn[T]) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		c.Valid = false
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("jsonColumn: неподдерживаемый тип %T", src)
	}
	if err := json.Unmarshal(raw, &c.V); err != nil {
		return err
	}
	c.Valid = true
	return nil
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
