package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

const selectOrderColumns = `
	SELECT id, session_id, status, total, shipping, card_last4, shipping_method,
	       tracking_number, placed_at, updated_at
	FROM orders
`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	shipping, err := json.Marshal(order.Shipping)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, session_id, status, total, shipping, card_last4, shipping_method,
			tracking_number, placed_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		order.ID, order.SessionID, string(order.Status), order.Total, shipping,
		order.CardLast4, order.ShippingMethod, order.TrackingNumber,
		order.PlacedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, line := range order.Lines {
		product, marshalErr := json.Marshal(line.Product)
		if marshalErr != nil {
			err = fmt.Errorf("marshal product snapshot: %w", marshalErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				order_id, position, product_id, variant, quantity, unit_price, product
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			order.ID, i, line.Product.ID, line.SelectedVariant, line.Quantity, line.Product.Price, product,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, selectOrderColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListBySession(sessionID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := selectOrderColumns + `
		WHERE session_id = $1
		ORDER BY placed_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", sessionID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, sessionID)
	}
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

	for i := range orders {
		lines, err := r.loadLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order    domain.Order
		status   string
		shipping []byte
	)
	if err := row.Scan(
		&order.ID, &order.SessionID, &status, &order.Total, &shipping,
		&order.CardLast4, &order.ShippingMethod, &order.TrackingNumber,
		&order.PlacedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(shipping, &order.Shipping); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	return order, nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT variant, quantity, product
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var (
			line    domain.CartLine
			product []byte
		)
		if err := rows.Scan(&line.SelectedVariant, &line.Quantity, &product); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		if err := json.Unmarshal(product, &line.Product); err != nil {
			return nil, fmt.Errorf("unmarshal product snapshot: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
