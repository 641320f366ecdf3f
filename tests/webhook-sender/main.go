// Sends signed checkout.session.completed events at the local server,
// occasionally duplicating one to exercise the conflict path.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/inkhaven/order-service/internal/provider"
)

const (
	webhookURL = "http://localhost:8080/webhooks/payment"
	secretEnv  = "PROVIDER_WEBHOOK_SECRET"
)

func randomSession() provider.CheckoutSession {
	orderID := uuid.New().String()
	return provider.CheckoutSession{
		ID:            "cs_" + uuid.New().String()[:12],
		PaymentStatus: provider.PaymentStatusPaid,
		AmountTotal:   int64(rand.Intn(10000) + 500),
		CustomerEmail: fmt.Sprintf("reader%d@example.com", rand.Intn(1000)),
		Metadata: map[string]string{
			provider.MetaOrderID:         orderID,
			provider.MetaFulfillmentType: "shipping",
		},
		ShippingDetails: &provider.ShippingDetails{
			Name: "Jordan Reader",
			Address: &provider.Address{
				Line1:      fmt.Sprintf("%d Elm Street", rand.Intn(900)+1),
				City:       "Springfield",
				PostalCode: fmt.Sprintf("%05d", rand.Intn(99999)),
				Country:    "US",
			},
		},
	}
}

func send(secret string, session provider.CheckoutSession) {
	object, _ := json.Marshal(session)

	event := map[string]any{
		"id":   "evt_" + uuid.New().String()[:12],
		"type": provider.EventCheckoutSessionCompleted,
		"data": map[string]any{"object": json.RawMessage(object)},
	}
	payload, _ := json.Marshal(event)

	req, _ := http.NewRequest(http.MethodPost, webhookURL, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Payment-Signature", provider.SignPayload(payload, secret, time.Now()))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Println("request failed:", err)
		return
	}
	defer resp.Body.Close()
	log.Println("sent", session.Metadata[provider.MetaOrderID], "->", resp.Status)
}

func main() {
	secret := os.Getenv(secretEnv)
	if secret == "" {
		log.Fatalf("%s is not set", secretEnv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			session := randomSession()
			send(secret, session)
			// Redeliver roughly every fifth event.
			if rand.Intn(5) == 0 {
				send(secret, session)
			}
		case <-ctx.Done():
			return
		}
	}
}
