package repo

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/inkhaven/order-service/internal/entities"
)

type Order struct {
	OrderID         string          `db:"order_id"`
	Email           sql.NullString  `db:"email"`
	CustomerName    sql.NullString  `db:"customer_name"`
	FulfillmentType string          `db:"fulfillment_type"`
	PickupLocation  sql.NullString  `db:"pickup_location"`
	Total           decimal.Decimal `db:"total"`
	DiscountAmount  decimal.Decimal `db:"discount_amount"`
	ShippingCost    decimal.Decimal `db:"shipping_cost"`
	FinalTotal      decimal.Decimal `db:"final_total"`
	PromoCodeID     sql.NullString  `db:"promo_code_id"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

type OrderItem struct {
	OrderID  string          `db:"order_id"`
	Position int             `db:"position"`
	Title    string          `db:"title"`
	Quantity int             `db:"quantity"`
	Price    decimal.Decimal `db:"price"`
}

type ShippingAddress struct {
	OrderID    string         `db:"order_id"`
	Name       sql.NullString `db:"name"`
	Line1      sql.NullString `db:"line1"`
	Line2      sql.NullString `db:"line2"`
	City       sql.NullString `db:"city"`
	State      sql.NullString `db:"state"`
	PostalCode sql.NullString `db:"postal_code"`
	Country    sql.NullString `db:"country"`
}

type PromoCode struct {
	PromoCodeID        string              `db:"promo_code_id"`
	Code               string              `db:"code"`
	DiscountType       string              `db:"discount_type"`
	DiscountValue      decimal.Decimal     `db:"discount_value"`
	MinimumOrderAmount decimal.NullDecimal `db:"minimum_order_amount"`
	MaxUses            sql.NullInt32       `db:"max_uses"`
	CurrentUses        int                 `db:"current_uses"`
	ValidFrom          time.Time           `db:"valid_from"`
	ValidUntil         sql.NullTime        `db:"valid_until"`
	IsActive           bool                `db:"is_active"`
}

type Book struct {
	BookID string          `db:"book_id"`
	Title  string          `db:"title"`
	Price  decimal.Decimal `db:"price"`
	Stock  int             `db:"stock"`
}

func OrderToEntity(o Order, items []OrderItem, addr *ShippingAddress) entities.Order {
	order := entities.Order{
		ID:             o.OrderID,
		Email:          nullStringToString(o.Email),
		CustomerName:   nullStringToString(o.CustomerName),
		Fulfillment:    entities.FulfillmentType(o.FulfillmentType),
		PickupLocation: nullStringToString(o.PickupLocation),
		Total:          o.Total,
		DiscountAmount: o.DiscountAmount,
		ShippingCost:   o.ShippingCost,
		FinalTotal:     o.FinalTotal,
		PromoCodeID:    nullStringToString(o.PromoCodeID),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}

	if len(items) > 0 {
		order.Items = make([]entities.OrderItem, 0, len(items))
		for _, it := range items {
			order.Items = append(order.Items, entities.OrderItem{
				Title:    it.Title,
				Quantity: it.Quantity,
				Price:    it.Price,
			})
		}
	}

	if addr != nil {
		order.ShippingAddress = &entities.Address{
			Name:       nullStringToString(addr.Name),
			Line1:      nullStringToString(addr.Line1),
			Line2:      nullStringToString(addr.Line2),
			City:       nullStringToString(addr.City),
			State:      nullStringToString(addr.State),
			PostalCode: nullStringToString(addr.PostalCode),
			Country:    nullStringToString(addr.Country),
		}
	}

	return order
}

func PromoToEntity(p PromoCode) entities.PromoCode {
	promo := entities.PromoCode{
		ID:            p.PromoCodeID,
		Code:          p.Code,
		DiscountType:  entities.DiscountType(p.DiscountType),
		DiscountValue: p.DiscountValue,
		MaxUses:       int(p.MaxUses.Int32),
		CurrentUses:   p.CurrentUses,
		ValidFrom:     p.ValidFrom,
		IsActive:      p.IsActive,
	}
	if p.MinimumOrderAmount.Valid {
		promo.MinimumOrderAmount = p.MinimumOrderAmount.Decimal
	}
	if p.ValidUntil.Valid {
		until := p.ValidUntil.Time
		promo.ValidUntil = &until
	}
	return promo
}

func BookToEntity(b Book) entities.Book {
	return entities.Book{
		ID:    b.BookID,
		Title: b.Title,
		Price: b.Price,
		Stock: b.Stock,
	}
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
