package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/pkg/trm"
)

// uniqueViolation is the Postgres error code surfaced when an insert races
// a concurrent insert under the same key.
const uniqueViolation = "23505"

type postgresRepo struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func NewPostgresRepo(db *sqlx.DB) *postgresRepo {
	return &postgresRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *postgresRepo) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	query, args := r.qb.Select(
		"order_id", "email", "customer_name", "fulfillment_type", "pickup_location",
		"total", "discount_amount", "shipping_cost", "final_total", "promo_code_id",
		"created_at", "updated_at").
		From("orders").
		Where(sq.Eq{"order_id": orderID}).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	query, args = r.qb.Select("order_id", "position", "title", "quantity", "price").
		From("order_items").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("position").
		MustSql()

	var items []OrderItem
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order items: %w", err)
	}

	query, args = r.qb.Select(
		"order_id", "name", "line1", "line2", "city", "state", "postal_code", "country").
		From("shipping_addresses").
		Where(sq.Eq{"order_id": orderID}).
		MustSql()

	var addr ShippingAddress
	err = r.getContext(ctx, &addr, query, args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, fmt.Errorf("failed to get shipping address: %w", err)
	}

	var addrPtr *ShippingAddress
	if err == nil {
		addrPtr = &addr
	}
	return OrderToEntity(order, items, addrPtr), nil
}

// InsertOrder writes the order row. Unlike the auxiliary tables it carries
// no ON CONFLICT clause: a duplicate key must surface as ErrOrderExists so
// the reconciler can resolve the race by re-fetching.
func (r *postgresRepo) InsertOrder(ctx context.Context, o entities.Order) error {
	query, args := r.qb.Insert("orders").
		Columns(
			"order_id", "email", "customer_name", "fulfillment_type", "pickup_location",
			"total", "discount_amount", "shipping_cost", "final_total", "promo_code_id",
		).
		Values(
			o.ID, nullString(o.Email), nullString(o.CustomerName),
			string(o.Fulfillment), nullString(o.PickupLocation),
			o.Total, o.DiscountAmount, o.ShippingCost, o.FinalTotal,
			nullString(o.PromoCodeID),
		).
		MustSql()

	_, err := r.execContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return entities.ErrOrderExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *postgresRepo) SaveItems(ctx context.Context, orderID string, items []entities.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	q := r.qb.Insert("order_items").
		Columns("order_id", "position", "title", "quantity", "price").
		Suffix("ON CONFLICT (order_id, position) DO NOTHING")

	for i, it := range items {
		q = q.Values(orderID, i, it.Title, it.Quantity, it.Price)
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save order items: %w", err)
	}
	return nil
}

// SaveShippingAddress inserts the address only when the order has none
// yet. ON CONFLICT DO NOTHING makes the backfill idempotent and guarantees
// an already stored address is never overwritten.
func (r *postgresRepo) SaveShippingAddress(ctx context.Context, orderID string, a entities.Address) error {
	query, args := r.qb.Insert("shipping_addresses").
		Columns("order_id", "name", "line1", "line2", "city", "state", "postal_code", "country").
		Values(orderID,
			nullString(a.Name),
			nullString(a.Line1),
			nullString(a.Line2),
			nullString(a.City),
			nullString(a.State),
			nullString(a.PostalCode),
			nullString(a.Country),
		).
		Suffix("ON CONFLICT (order_id) DO NOTHING").
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save shipping address: %w", err)
	}
	return nil
}

// BackfillContact fills in name and email only where the row has none.
// COALESCE keeps whatever is already populated authoritative.
func (r *postgresRepo) BackfillContact(ctx context.Context, orderID, name, email string) error {
	query, args := r.qb.Update("orders").
		Set("customer_name", sq.Expr("COALESCE(customer_name, NULLIF(?, ''))", name)).
		Set("email", sq.Expr("COALESCE(email, NULLIF(?, ''))", email)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"order_id": orderID}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to backfill order contact: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetPromoByCode(ctx context.Context, code string) (entities.PromoCode, error) {
	return r.getPromo(ctx, sq.Eq{"code": code})
}

func (r *postgresRepo) GetPromoByID(ctx context.Context, promoID string) (entities.PromoCode, error) {
	return r.getPromo(ctx, sq.Eq{"promo_code_id": promoID})
}

func (r *postgresRepo) getPromo(ctx context.Context, pred sq.Eq) (entities.PromoCode, error) {
	query, args := r.qb.Select(
		"promo_code_id", "code", "discount_type", "discount_value",
		"minimum_order_amount", "max_uses", "current_uses",
		"valid_from", "valid_until", "is_active").
		From("promo_codes").
		Where(pred).
		MustSql()

	var promo PromoCode
	err := r.getContext(ctx, &promo, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.PromoCode{}, entities.ErrPromoNotFound
	}
	if err != nil {
		return entities.PromoCode{}, fmt.Errorf("failed to get promo code: %w", err)
	}
	return PromoToEntity(promo), nil
}

// IncrementUses bumps the usage counter atomically in the database.
func (r *postgresRepo) IncrementUses(ctx context.Context, promoID string) error {
	query, args := r.qb.Update("promo_codes").
		Set("current_uses", sq.Expr("current_uses + 1")).
		Where(sq.Eq{"promo_code_id": promoID}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to increment promo uses: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return entities.ErrPromoNotFound
	}
	return nil
}

func (r *postgresRepo) GetBooksByTitles(ctx context.Context, titles []string) ([]entities.Book, error) {
	query, args := r.qb.Select("book_id", "title", "price", "stock").
		From("books").
		Where(sq.Eq{"title": titles}).
		MustSql()

	var books []Book
	if err := r.selectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select books: %w", err)
	}

	result := make([]entities.Book, 0, len(books))
	for _, b := range books {
		result = append(result, BookToEntity(b))
	}
	return result, nil
}

// DecrementStock lowers stock for each purchased title, clamped at zero so
// a payment-link purchase with a synthetic line never drives stock negative.
func (r *postgresRepo) DecrementStock(ctx context.Context, items []entities.OrderItem) error {
	for _, it := range items {
		query, args := r.qb.Update("books").
			Set("stock", sq.Expr("GREATEST(stock - ?, 0)", it.Quantity)).
			Where(sq.Eq{"title": it.Title}).
			MustSql()

		if _, err := r.execContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to decrement stock for %q: %w", it.Title, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (r *postgresRepo) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r *postgresRepo) getContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return r.db.GetContext(ctx, dest, query, args...)
}

func (r *postgresRepo) selectContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return r.db.SelectContext(ctx, dest, query, args...)
}
