package notification

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arborlead-service/internal/domain/lead"
	"arborlead-service/internal/domain/quote"
)

type captureSender struct {
	mu   sync.Mutex
	sent chan struct{}

	to      string
	subject string
	body    string
}

func newCaptureSender() *captureSender {
	return &captureSender{sent: make(chan struct{}, 1)}
}

func (c *captureSender) Send(to, subject, bodyHTML string) error {
	c.mu.Lock()
	c.to = to
	c.subject = subject
	c.body = bodyHTML
	c.mu.Unlock()
	c.sent <- struct{}{}
	return nil
}

func (c *captureSender) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("email was never sent")
	}
}

func TestBuildOffertText(t *testing.T) {
	q := &quote.Quote{
		FinalTotal: decimal.RequireFromString("2070.00"),
		Items: []quote.Item{
			{
				TreeSpecies:   quote.SpeciesOak,
				OperationType: quote.OpFelling,
				Quantity:      2,
				UnitPrice:     decimal.RequireFromString("1000"),
			},
			{
				TreeSpecies:     quote.SpeciesBirch,
				OperationType:   quote.OpOther,
				CustomOperation: sql.NullString{String: "Flisning på plats", Valid: true},
				Quantity:        1,
				UnitPrice:       decimal.RequireFromString("450.50"),
			},
		},
	}

	want := "Offert för arbete:\n" +
		"2x Ek (Oak) - Trädfällning à 1000.00 SEK\n" +
		"1x Björk (Birch) - Flisning på plats à 450.50 SEK\n" +
		"\nTotal: 2070.00 SEK"
	assert.Equal(t, want, BuildOffertText(q))
}

func TestSendQuoteToCustomer(t *testing.T) {
	sender := newCaptureSender()
	svc := NewNotificationService(sender, "https://arborlead.se", zap.NewNop())

	l := &lead.Lead{
		ID:            1,
		CustomerName:  "Eva Lindqvist",
		CustomerEmail: "eva@example.se",
		Address:       "Storgatan 1",
		City:          "Uppsala",
	}
	q := &quote.Quote{
		ID:         2,
		Reference:  "QUO-1756368000-a1b2c3d4",
		FinalTotal: decimal.RequireFromString("2300.00"),
		Items: []quote.Item{
			{TreeSpecies: quote.SpeciesOak, OperationType: quote.OpFelling, Quantity: 2, UnitPrice: decimal.RequireFromString("1000")},
		},
	}

	svc.SendQuoteToCustomer(l, q)
	sender.wait(t)

	assert.Equal(t, "eva@example.se", sender.to)
	assert.Equal(t, "Offert QUO-1756368000-a1b2c3d4 - ArborLead", sender.subject)
	assert.Contains(t, sender.body, "Storgatan 1")
	assert.Contains(t, sender.body, "Total: 2300.00 SEK")
	assert.Contains(t, sender.body, "QUO-1756368000-a1b2c3d4")
	assert.Contains(t, sender.body, "https://arborlead.se")
}

func TestSendDecisionConfirmation(t *testing.T) {
	l := &lead.Lead{CustomerName: "Eva", CustomerEmail: "eva@example.se"}
	q := &quote.Quote{Reference: "QUO-1-abcd"}

	sender := newCaptureSender()
	svc := NewNotificationService(sender, "https://arborlead.se", zap.NewNop())
	svc.SendDecisionConfirmation(l, q, true)
	sender.wait(t)
	assert.Contains(t, sender.subject, "godkänd")

	sender = newCaptureSender()
	svc = NewNotificationService(sender, "https://arborlead.se", zap.NewNop())
	svc.SendDecisionConfirmation(l, q, false)
	sender.wait(t)
	assert.Contains(t, sender.subject, "avböjd")
}

func TestSendMonthlyInvoice(t *testing.T) {
	sender := newCaptureSender()
	svc := NewNotificationService(sender, "https://arborlead.se", zap.NewNop())

	svc.SendMonthlyInvoice("b@example.se", "Partner B", "672.50", "2026-08")
	sender.wait(t)

	require.Equal(t, "b@example.se", sender.to)
	assert.Equal(t, "Faktura 2026-08 - ArborLead", sender.subject)
	assert.Contains(t, sender.body, "672.50 SEK")
	assert.Contains(t, sender.body, "2026-08")
}
