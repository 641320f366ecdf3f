// Package notify publishes email jobs to Kafka. Rendering and delivery
// happen in a separate mail worker; this service only has to get the job
// onto the topic.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/inkhaven/order-service/internal/config"
	"github.com/inkhaven/order-service/internal/entities"
)

const (
	kindOrderConfirmation = "order_confirmation"
	kindSaleNotification  = "sale_notification"

	// Shown to operations staff when the payment payload carried no
	// customer email at all.
	unknownCustomer = "no email provided"
)

type emailItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// EmailJob is the message consumed by the mail worker.
type EmailJob struct {
	ID            string      `json:"id"`
	Kind          string      `json:"kind"`
	Recipient     string      `json:"recipient"`
	OrderID       string      `json:"order_id"`
	CustomerName  string      `json:"customer_name,omitempty"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Items         []emailItem `json:"items"`
	Total         string      `json:"total"`
	Discount      string      `json:"discount"`
	Shipping      string      `json:"shipping"`
	FinalTotal    string      `json:"final_total"`
	Fulfillment   string      `json:"fulfillment"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Publisher struct {
	logger     *slog.Logger
	writer     *kafka.Writer
	salesEmail string
}

func NewPublisher(logger *slog.Logger, cfg config.Kafka, salesEmail string) *Publisher {
	return &Publisher{
		logger: logger.With(slog.String("component", "notify")),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.EmailTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
		salesEmail: salesEmail,
	}
}

// OrderConfirmation queues the customer-facing confirmation email.
func (p *Publisher) OrderConfirmation(ctx context.Context, order entities.Order) error {
	if order.Email == "" {
		return fmt.Errorf("order %s has no customer email", order.ID)
	}
	job := newJob(kindOrderConfirmation, order.Email, order)
	return p.publish(ctx, job)
}

// SaleNotification queues the internal sales email. It is sent for every
// order, substituting a placeholder when the customer email is unknown.
func (p *Publisher) SaleNotification(ctx context.Context, order entities.Order) error {
	job := newJob(kindSaleNotification, p.salesEmail, order)
	if job.CustomerEmail == "" {
		job.CustomerEmail = unknownCustomer
	}
	return p.publish(ctx, job)
}

func (p *Publisher) publish(ctx context.Context, job EmailJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal email job: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.OrderID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish email job: %w", err)
	}

	p.logger.DebugContext(ctx, "email job published",
		slog.String("kind", job.Kind),
		slog.String("order_id", job.OrderID),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func newJob(kind, recipient string, order entities.Order) EmailJob {
	items := make([]emailItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, emailItem{
			Title:    it.Title,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
		})
	}

	return EmailJob{
		ID:            uuid.New().String(),
		Kind:          kind,
		Recipient:     recipient,
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.Email,
		Items:         items,
		Total:         order.Total.StringFixed(2),
		Discount:      order.DiscountAmount.StringFixed(2),
		Shipping:      order.ShippingCost.StringFixed(2),
		FinalTotal:    order.FinalTotal.StringFixed(2),
		Fulfillment:   string(order.Fulfillment),
		CreatedAt:     time.Now(),
	}
}
