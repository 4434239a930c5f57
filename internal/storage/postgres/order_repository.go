package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	orderColumns = `id, client_id, shop_id, client_name, client_phone, shop_name, litres,
		total_amount_minor, currency, status, payment_method, payment_status, transaction_ref,
		order_date, delivery_date, delivery_location, notes, version, updated_at`
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	location, err := json.Marshal(order.DeliveryLocation)
	if err != nil {
		return fmt.Errorf("encode delivery location: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`,
		order.ID, order.ClientID, order.ShopID, order.ClientName, order.ClientPhone, order.ShopName,
		order.Litres, order.TotalAmountMinor, order.Currency, string(order.Status),
		string(order.PaymentMethod), string(order.PaymentStatus), order.TransactionRef,
		order.OrderDate, nullTime(order.DeliveryDate), location, order.Notes, order.Version, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) List(filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query, args := buildListQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	location, err := json.Marshal(order.DeliveryLocation)
	if err != nil {
		return fmt.Errorf("encode delivery location: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    transaction_ref = $3,
		    delivery_date = $4,
		    delivery_location = $5,
		    notes = $6,
		    version = version + 1,
		    updated_at = $7
		WHERE id = $8
		  AND version = $9
	`,
		string(order.Status),
		string(order.PaymentStatus),
		order.TransactionRef,
		nullTime(order.DeliveryDate),
		location,
		order.Notes,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, existsErr := r.orderExistsTx(ctx, tx, order.ID)
		if existsErr != nil {
			err = existsErr
			return err
		}
		if !exists {
			err = domain.ErrOrderNotFound
			return err
		}
		err = domain.ErrOrderVersionConflict
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order: %w", err)
	}

	return nil
}

func (r *orderRepository) orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

// buildListQuery собирает SELECT под фильтр. Порядок совпадает с in-memory: новые первыми.
func buildListQuery(filter domain.OrderFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.ClientID != "" {
		add("client_id = ?", filter.ClientID)
	}
	if filter.ShopID != "" {
		add("shop_id = ?", filter.ShopID)
	}
	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if filter.PaymentStatus != "" {
		add("payment_status = ?", string(filter.PaymentStatus))
	}
	if filter.PaymentMethod != "" {
		add("payment_method = ?", string(filter.PaymentMethod))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add("(id ILIKE ? OR client_name ILIKE ? OR shop_name ILIKE ?)", "%"+escapeLike(q)+"%")
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY order_date DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order         domain.Order
		status        string
		paymentMethod string
		paymentStatus string
		deliveryDate  sql.NullTime
		location      []byte
	)
	if err := row.Scan(
		&order.ID, &order.ClientID, &order.ShopID, &order.ClientName, &order.ClientPhone, &order.ShopName,
		&order.Litres, &order.TotalAmountMinor, &order.Currency, &status,
		&paymentMethod, &paymentStatus, &order.TransactionRef,
		&order.OrderDate, &deliveryDate, &location, &order.Notes, &order.Version, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentMethod = domain.PaymentMethod(paymentMethod)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)
	order.OrderDate = order.OrderDate.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	if deliveryDate.Valid {
		d := deliveryDate.Time.UTC()
		order.DeliveryDate = &d
	}
	if len(location) > 0 {
		if err := json.Unmarshal(location, &order.DeliveryLocation); err != nil {
			return domain.Order{}, fmt.Errorf("decode delivery location: %w", err)
		}
	}
	return order, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
