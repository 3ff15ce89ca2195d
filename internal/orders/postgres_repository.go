package orders

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
	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "github.com/lib/pq"

	"github.com/trikooo/storefront/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

const eventTypeOrderCreated = "order.created"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

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
		MigrationsTable: "orders_schema_migrations",
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

// CreateOrder writes the order and its order.created outbox event in one
// transaction so a crash can't produce an order no consumer ever hears about.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	var addressJSON, guestAddressJSON []byte
	if order.Address != nil {
		if addressJSON, err = json.Marshal(order.Address); err != nil {
			return fmt.Errorf("failed to marshal order address: %w", err)
		}
	}
	if order.GuestAddress != nil {
		if guestAddressJSON, err = json.Marshal(order.GuestAddress); err != nil {
			return fmt.Errorf("failed to marshal guest address: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (id, user_id, status, items, shipping_price, address, guest_address, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, insertErr := tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.Status.String(),
		itemsJSON,
		order.ShippingPrice,
		nullableJSON(addressJSON),
		nullableJSON(guestAddressJSON),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("order %s already exists: %w", order.ID, insertErr)
		}
		return fmt.Errorf("failed to insert order: %w", insertErr)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order_id":   order.ID,
		"user_id":    order.UserID,
		"created_at": order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	outboxQuery := `INSERT INTO orders_outbox (id, aggregate_id, event_type, payload, created_at)
	                VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.ExecContext(ctx, outboxQuery,
		uuid.NewString(),
		order.ID,
		eventTypeOrderCreated,
		payload,
		now,
	); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT id, user_id, status, items, shipping_price, address, guest_address, created_at, updated_at
	          FROM orders WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

func (r *Repository) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `SELECT id, user_id, status, items, shipping_price, address, guest_address, created_at, updated_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, *order)
	}

	return result, rows.Err()
}

// SetItemTracking stamps the provider tracking number on the given line items
// and flips the order to SHIPPED. The items column is read-modified-written
// under FOR UPDATE so concurrent dispatches can't lose stamps.
func (r *Repository) SetItemTracking(ctx context.Context, orderID string, productIDs []string, tracking string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var itemsJSON []byte
	row := tx.QueryRowContext(ctx, `SELECT items FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	if err := row.Scan(&itemsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("failed to lock order: %w", err)
	}

	var items []domain.OrderLineItem
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return fmt.Errorf("failed to unmarshal order items: %w", err)
	}

	wanted := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}

	for i := range items {
		if wanted[items[i].ProductID] && items[i].TrackingNumber == "" {
			items[i].TrackingNumber = tracking
		}
	}

	updated, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET items = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		updated, domain.OrderStatusShipped.String(), orderID,
	); err != nil {
		return fmt.Errorf("failed to update order items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tracking update: %w", err)
	}

	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload
	          FROM orders_outbox WHERE processed_at IS NULL ORDER BY created_at LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders_outbox SET processed_at = NOW() WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order            domain.Order
		status           string
		itemsJSON        []byte
		addressJSON      sql.NullString
		guestAddressJSON sql.NullString
	)

	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&status,
		&itemsJSON,
		&order.ShippingPrice,
		&addressJSON,
		&guestAddressJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatus(status)

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}

	if addressJSON.Valid {
		var addr domain.Address
		if err := json.Unmarshal([]byte(addressJSON.String), &addr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order address: %w", err)
		}
		order.Address = &addr
	}
	if guestAddressJSON.Valid {
		var addr domain.Address
		if err := json.Unmarshal([]byte(guestAddressJSON.String), &addr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal guest address: %w", err)
		}
		order.GuestAddress = &addr
	}

	return &order, nil
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return data
}
