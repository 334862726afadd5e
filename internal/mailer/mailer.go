// Package mailer sends the customer notification mails triggered by order
// lifecycle events. Delivery is fire-and-forget: failures are logged and
// never propagated to the request that caused the event.
package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"printwerk/internal/models"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Config holds the SMTP relay settings and the values the mail bodies are
// parameterized with.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppName  string
	BaseURL  string
}

// Mailer sends HTML mail through an external SMTP relay.
type Mailer struct {
	cfg Config
}

// New creates a new Mailer.
func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send delivers a single HTML mail to one recipient.
func (m *Mailer) Send(subject, to, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Message-ID: <%s@%s>\r\n", uuid.New().String(), m.cfg.Host)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// HandleOrderEvent consumes one lifecycle event from the queue and sends the
// matching customer mail. It always reports success so unsendable mail is
// not requeued forever.
func (m *Mailer) HandleOrderEvent(msg amqp.Delivery) error {
	var ev models.OrderEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		log.Printf("Dropping malformed order event: %v", err)
		return nil
	}

	var subject, body string
	switch ev.Event {
	case models.EventOrderCreated:
		subject = fmt.Sprintf("%s: Auftrag eingegangen", m.cfg.AppName)
		body = m.newOrderBody(ev)
	case models.EventOrderPriceSent:
		subject = fmt.Sprintf("%s: Preisangebot", m.cfg.AppName)
		body = m.priceSentBody(ev)
	case models.EventOrderCompleted:
		subject = fmt.Sprintf("%s: Auftrag erledigt", m.cfg.AppName)
		body = m.completedBody(ev)
	default:
		log.Printf("Ignoring unknown order event %q", ev.Event)
		return nil
	}

	if err := m.Send(subject, ev.CustomerEmail, body); err != nil {
		log.Printf("Fehler beim Senden der E-Mail: %v", err)
	}
	return nil
}

// publicURL builds the customer-facing status link for an order token.
func (m *Mailer) publicURL(token string) string {
	return strings.TrimRight(m.cfg.BaseURL, "/") + "/r/" + token
}

func (m *Mailer) newOrderBody(ev models.OrderEvent) string {
	url := m.publicURL(ev.Token)
	return fmt.Sprintf(`<h3>Hallo %s,</h3>
<p>Danke für deinen Auftrag bei %s!</p>
<p>Du kannst den Status hier verfolgen:</p>
<p><a href="%s">%s</a></p>
<p>Wir melden uns, sobald wir den Auftrag geprüft haben.</p>`,
		ev.CustomerName, m.cfg.AppName, url, url)
}

func (m *Mailer) priceSentBody(ev models.OrderEvent) string {
	url := m.publicURL(ev.Token)
	return fmt.Sprintf(`<h3>Hallo %s,</h3>
<p>Gute Nachrichten: Wir haben deinen Auftrag geprüft.</p>
<p><strong>Preisangebot: %s</strong></p>
<p>Bitte bestätige oder lehne das Angebot hier ab:</p>
<p><a href="%s">%s</a></p>`,
		ev.CustomerName, ev.Price, url, url)
}

func (m *Mailer) completedBody(ev models.OrderEvent) string {
	url := m.publicURL(ev.Token)
	return fmt.Sprintf(`<h3>Auftrag erledigt!</h3>
<p>Hallo %s, dein 3D-Druck ist fertig.</p>
<p>Status prüfen: <a href="%s">%s</a></p>`,
		ev.CustomerName, url, url)
}
