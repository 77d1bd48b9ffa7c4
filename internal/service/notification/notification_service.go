// internal/service/notification/notification_service.go
package notification

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"arborlead-service/internal/domain/lead"
	"arborlead-service/internal/domain/quote"
)

// Sender delivers an email. Satisfied by email.EmailSender.
type Sender interface {
	Send(to, subject, bodyHTML string) error
}

// NotificationService renders and dispatches customer-facing emails.
// Delivery is fire-and-forget: failures are logged, never propagated
// into the calling workflow.
type NotificationService struct {
	sender    Sender
	publicURL string
	logger    *zap.Logger
}

func NewNotificationService(sender Sender, publicURL string, logger *zap.Logger) *NotificationService {
	return &NotificationService{sender: sender, publicURL: publicURL, logger: logger}
}

// BuildOffertText renders the Swedish plain-text offert body for a quote.
func BuildOffertText(q *quote.Quote) string {
	var b strings.Builder
	b.WriteString("Offert för arbete:\n")
	for _, item := range q.Items {
		op := string(item.OperationType)
		if item.OperationType == quote.OpOther && item.CustomOperation.Valid {
			op = item.CustomOperation.String
		}
		fmt.Fprintf(&b, "%dx %s - %s à %s SEK\n", item.Quantity, item.TreeSpecies, op, item.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s SEK", q.FinalTotal.StringFixed(2))
	return b.String()
}

// SendQuoteToCustomer emails the rendered offert to the lead's customer.
// Runs on its own goroutine so a slow SMTP server never blocks the
// quote workflow.
func (s *NotificationService) SendQuoteToCustomer(l *lead.Lead, q *quote.Quote) {
	go func() {
		offert := BuildOffertText(q)
		body := fmt.Sprintf(
			`<p>Hej %s,</p>
			<p>Här kommer vår offert för arbetet på %s, %s.</p>
			<pre class="offert">%s</pre>
			<p>Svara på offerten via referens <strong>%s</strong> på %s.</p>`,
			l.CustomerName, l.Address, l.City, offert, q.Reference, s.publicURL,
		)
		subject := fmt.Sprintf("Offert %s - ArborLead", q.Reference)
		if err := s.sender.Send(l.CustomerEmail, subject, body); err != nil {
			s.logger.Error("failed to send quote email",
				zap.Int64("lead_id", l.ID),
				zap.Int64("quote_id", q.ID),
				zap.Error(err))
			return
		}
		s.logger.Info("quote email sent",
			zap.Int64("lead_id", l.ID),
			zap.Int64("quote_id", q.ID),
			zap.String("reference", q.Reference))
	}()
}

// SendDecisionConfirmation acknowledges the customer's approve/decline.
func (s *NotificationService) SendDecisionConfirmation(l *lead.Lead, q *quote.Quote, approved bool) {
	go func() {
		var body, subject string
		if approved {
			subject = fmt.Sprintf("Tack! Offert %s godkänd", q.Reference)
			body = fmt.Sprintf(
				`<p>Hej %s,</p>
				<p>Tack för att du godkände offerten. Din arborist hör av sig inom kort för att boka arbetet.</p>`,
				l.CustomerName,
			)
		} else {
			subject = fmt.Sprintf("Offert %s avböjd", q.Reference)
			body = fmt.Sprintf(
				`<p>Hej %s,</p>
				<p>Vi har noterat att du tackade nej till offerten. Hör gärna av dig om du ändrar dig.</p>`,
				l.CustomerName,
			)
		}
		if err := s.sender.Send(l.CustomerEmail, subject, body); err != nil {
			s.logger.Error("failed to send decision confirmation",
				zap.Int64("lead_id", l.ID),
				zap.Int64("quote_id", q.ID),
				zap.Error(err))
		}
	}()
}

// SendMonthlyInvoice emails a partner their invoice total.
func (s *NotificationService) SendMonthlyInvoice(toEmail, partnerName, amount, period string) {
	go func() {
		subject := fmt.Sprintf("Faktura %s - ArborLead", period)
		body := fmt.Sprintf(
			`<p>Hej %s,</p>
			<p>Din faktura för perioden %s är nu klar.</p>
			<p>Belopp att betala: <strong>%s SEK</strong></p>`,
			partnerName, period, amount,
		)
		if err := s.sender.Send(toEmail, subject, body); err != nil {
			s.logger.Error("failed to send invoice email",
				zap.String("partner", partnerName),
				zap.Error(err))
		}
	}()
}
