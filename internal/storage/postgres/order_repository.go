package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/paklog/order-management/internal/domain"
)

const opTimeout = 5 * time.Second

const orderColumns = `
	id, seller_order_id, COALESCE(idempotency_key, ''),
	displayable_order_id, displayable_order_date, displayable_order_comment,
	shipping_speed_category,
	destination_name, destination_line1, destination_line2, destination_city,
	destination_region, destination_postal_code, destination_country,
	fulfillment_policy, fulfillment_action, status, cancellation_reason,
	received_at, version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

var _ domain.OrderRepository = (*orderRepository)(nil)

// Create вставляет заказ, его позиции и outbox-записи в одной транзакции.
// Нарушение уникальности seller_order_id или idempotency_key поднимается
// как ErrOrderAlreadyExists: проигравший гонку получает конфликт.
func (r *orderRepository) Create(ctx context.Context, order domain.Order, records []domain.OutboxRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	order.Version = 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO fulfillment_orders (
			id, seller_order_id, idempotency_key,
			displayable_order_id, displayable_order_date, displayable_order_comment,
			shipping_speed_category,
			destination_name, destination_line1, destination_line2, destination_city,
			destination_region, destination_postal_code, destination_country,
			fulfillment_policy, fulfillment_action, status, cancellation_reason,
			received_at, version, created_at, updated_at
		) VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`,
		order.OrderID, order.SellerOrderID, order.IdempotencyKey,
		order.DisplayableOrderID, nullTime(order.DisplayableOrderDate), order.DisplayableOrderComment,
		string(order.ShippingSpeedCategory),
		order.DestinationAddress.Name, order.DestinationAddress.AddressLine1,
		order.DestinationAddress.AddressLine2, order.DestinationAddress.City,
		order.DestinationAddress.StateOrRegion, order.DestinationAddress.PostalCode,
		order.DestinationAddress.CountryCode,
		string(order.FulfillmentPolicy), string(order.FulfillmentAction),
		string(order.Status), order.CancellationReason,
		nullTime(order.ReceivedAt), order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: order %s", domain.ErrOrderAlreadyExists, order.OrderID)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if err = insertItems(ctx, tx, order); err != nil {
		return err
	}
	if err = insertUnfulfillable(ctx, tx, order); err != nil {
		return err
	}
	if err = insertOutbox(ctx, tx, records); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

// Save обновляет заказ с optimistic locking и атомарно добавляет outbox-записи.
func (r *orderRepository) Save(ctx context.Context, order domain.Order, records []domain.OutboxRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

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
		UPDATE fulfillment_orders
		SET fulfillment_action = $1,
		    status = $2,
		    cancellation_reason = $3,
		    received_at = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		string(order.FulfillmentAction), string(order.Status), order.CancellationReason,
		nullTime(order.ReceivedAt), order.UpdatedAt, order.OrderID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, checkErr := orderExistsTx(ctx, tx, order.OrderID)
		if checkErr != nil {
			err = checkErr
			return err
		}
		if !exists {
			err = fmt.Errorf("%w: order id %s", domain.ErrOrderNotFound, order.OrderID)
			return err
		}
		err = fmt.Errorf("%w: order %s at version %d", domain.ErrOrderVersionConflict, order.OrderID, order.Version)
		return err
	}

	// Неисполнимые позиции перезаписываются целиком: их набор может меняться.
	if _, err = tx.ExecContext(ctx, `DELETE FROM unfulfillable_items WHERE order_id = $1`, order.OrderID); err != nil {
		return fmt.Errorf("delete unfulfillable items: %w", err)
	}
	if err = insertUnfulfillable(ctx, tx, order); err != nil {
		return err
	}
	if err = insertOutbox(ctx, tx, records); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order: %w", err)
	}
	return nil
}

// Get возвращает заказ по идентификатору.
func (r *orderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return r.findOne(ctx, `WHERE id = $1`, orderID)
}

// FindBySellerOrderID ищет заказ по внешнему идентификатору продавца.
func (r *orderRepository) FindBySellerOrderID(ctx context.Context, sellerOrderID string) (domain.Order, error) {
	return r.findOne(ctx, `WHERE seller_order_id = $1`, sellerOrderID)
}

// FindByIdempotencyKey ищет заказ по ключу идемпотентности.
func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	return r.findOne(ctx, `WHERE idempotency_key = $1`, key)
}

// FindByDisplayableOrderIDSince возвращает заказы с данным displayableOrderId,
// созданные не раньше since.
func (r *orderRepository) FindByDisplayableOrderIDSince(ctx context.Context, displayableOrderID string, since time.Time) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM fulfillment_orders
		WHERE displayable_order_id = $1
		  AND created_at >= $2
		ORDER BY created_at DESC, id DESC
	`, displayableOrderID, since)
	if err != nil {
		return nil, fmt.Errorf("query orders by displayable id: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		if err := r.loadChildren(ctx, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) findOne(ctx context.Context, where string, arg any) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM fulfillment_orders `+where, arg)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrOrderNotFound, arg)
		}
		return domain.Order{}, err
	}
	if err := r.loadChildren(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order                            domain.Order
		category, policy, action, status string
		displayableDate, receivedAt      sql.NullTime
	)
	err := row.Scan(
		&order.OrderID, &order.SellerOrderID, &order.IdempotencyKey,
		&order.DisplayableOrderID, &displayableDate, &order.DisplayableOrderComment,
		&category,
		&order.DestinationAddress.Name, &order.DestinationAddress.AddressLine1,
		&order.DestinationAddress.AddressLine2, &order.DestinationAddress.City,
		&order.DestinationAddress.StateOrRegion, &order.DestinationAddress.PostalCode,
		&order.DestinationAddress.CountryCode,
		&policy, &action, &status, &order.CancellationReason,
		&receivedAt, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("scan order row: %w", err)
	}

	order.ShippingSpeedCategory = domain.ShippingSpeedCategory(category)
	order.FulfillmentPolicy = domain.FulfillmentPolicy(policy)
	order.FulfillmentAction = domain.FulfillmentAction(action)
	order.Status = domain.OrderStatus(status)
	if displayableDate.Valid {
		order.DisplayableOrderDate = displayableDate.Time
	}
	if receivedAt.Valid {
		order.ReceivedAt = receivedAt.Time
	}
	return order, nil
}

func (r *orderRepository) loadChildren(ctx context.Context, order *domain.Order) error {
	items, err := r.loadItems(ctx, order.OrderID)
	if err != nil {
		return err
	}
	order.Items = items

	unfulfillable, err := r.loadUnfulfillable(ctx, order.OrderID)
	if err != nil {
		return err
	}
	order.UnfulfillableItems = unfulfillable
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seller_sku, seller_order_item_id, quantity, gift_message, displayable_comment
		FROM fulfillment_order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.SellerSKU, &item.SellerOrderItemID, &item.Quantity,
			&item.GiftMessage, &item.DisplayableComment); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func (r *orderRepository) loadUnfulfillable(ctx context.Context, orderID string) ([]domain.UnfulfillableItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seller_sku, seller_order_item_id, requested_quantity,
		       available_quantity, unfulfillable_quantity, reason
		FROM unfulfillable_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load unfulfillable items: %w", err)
	}
	defer rows.Close()

	var items []domain.UnfulfillableItem
	for rows.Next() {
		var (
			item   domain.UnfulfillableItem
			reason string
		)
		if err := rows.Scan(&item.SellerSKU, &item.SellerOrderItemID, &item.RequestedQuantity,
			&item.AvailableQuantity, &item.UnfulfillableQuantity, &reason); err != nil {
			return nil, fmt.Errorf("scan unfulfillable item: %w", err)
		}
		item.Reason = domain.UnfulfillableReason(reason)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unfulfillable items: %w", err)
	}
	return items, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	for i, item := range order.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fulfillment_order_items (
				order_id, position, seller_sku, seller_order_item_id,
				quantity, gift_message, displayable_comment
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, order.OrderID, i, item.SellerSKU, item.SellerOrderItemID,
			item.Quantity, item.GiftMessage, item.DisplayableComment); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func insertUnfulfillable(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	for i, item := range order.UnfulfillableItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO unfulfillable_items (
				order_id, position, seller_sku, seller_order_item_id,
				requested_quantity, available_quantity, unfulfillable_quantity, reason
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, order.OrderID, i, item.SellerSKU, item.SellerOrderItemID,
			item.RequestedQuantity, item.AvailableQuantity,
			item.UnfulfillableQuantity, string(item.Reason)); err != nil {
			return fmt.Errorf("insert unfulfillable item: %w", err)
		}
	}
	return nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, records []domain.OutboxRecord) error {
	for _, record := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_events (id, event_type, subject, payload, created_at, published)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, record.ID, record.EventType, record.Subject,
			record.Payload, record.CreatedAt, record.Published); err != nil {
			return fmt.Errorf("insert outbox record: %w", err)
		}
	}
	return nil
}

func orderExistsTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM fulfillment_orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
