package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Deliverer turns events into plain text mails for the customer and the
// shop operator.
type Deliverer struct {
	sender   Sender
	operator string
}

func NewDeliverer(s Sender, operatorEmail string) (*Deliverer, error) {
	if s == nil {
		return nil, fmt.Errorf("sender is nil")
	}
	return &Deliverer{sender: s, operator: operatorEmail}, nil
}

func (d *Deliverer) Handle(ctx context.Context, e Event) error {
	var errs []error
	for _, m := range d.Compose(e) {
		if m.To == "" {
			continue
		}
		if err := d.sender.Send(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("send %q to %s: %w", m.Subject, m.To, err))
		}
	}
	return errors.Join(errs...)
}

// Compose returns the mails an event produces.
func (d *Deliverer) Compose(e Event) []Message {
	switch e.Kind {
	case KindOrderPlaced:
		return []Message{
			{To: e.CustomerEmail, Subject: fmt.Sprintf("Order #%d confirmed", e.OrderID), Body: orderSummary("Thank you for your order!", e)},
			{To: d.operator, Subject: fmt.Sprintf("New order #%d from %s", e.OrderID, e.CustomerName), Body: orderSummary("A new order was placed.", e)},
		}
	case KindOutForDelivery:
		return []Message{
			{To: e.CustomerEmail, Subject: fmt.Sprintf("Order #%d is out for delivery", e.OrderID),
				Body: fmt.Sprintf("Hi %s,\n\nYour order is on its way to %s.\n", e.CustomerName, e.Delivery.Address)},
		}
	case KindDelivered:
		return []Message{
			{To: e.CustomerEmail, Subject: fmt.Sprintf("Order #%d delivered", e.OrderID),
				Body: fmt.Sprintf("Hi %s,\n\nYour order has been delivered. Enjoy!\n", e.CustomerName)},
			{To: d.operator, Subject: fmt.Sprintf("Order #%d delivered", e.OrderID), Body: orderSummary("Order delivered and archived.", e)},
		}
	case KindAddressChanged:
		return []Message{
			{To: d.operator, Subject: fmt.Sprintf("Delivery details changed for order #%d", e.OrderID), Body: addressDiff(e)},
		}
	}
	return nil
}

func orderSummary(intro string, e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nOrder #%d for %s\n", intro, e.OrderID, e.CustomerName)
	for _, l := range e.Lines {
		name := l.ItemName
		if l.Variant != "" {
			name += " (" + strings.ToLower(string(l.Variant)) + ")"
		}
		fmt.Fprintf(&b, "  %d x %s @ %s\n", l.Quantity, name, l.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: %s\nDeliver to: %s (%s)\n", e.Total.StringFixed(2), e.Delivery.Address, e.Delivery.Phone)
	if e.Delivery.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", e.Delivery.Notes)
	}
	return b.String()
}

func addressDiff(e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer %s changed the delivery details of order #%d.\n\n", e.CustomerName, e.OrderID)
	if e.Previous != nil {
		fmt.Fprintf(&b, "Old address: %s\nOld phone: %s\n", e.Previous.Address, e.Previous.Phone)
		if e.Previous.Notes != "" {
			fmt.Fprintf(&b, "Old notes: %s\n", e.Previous.Notes)
		}
	}
	fmt.Fprintf(&b, "New address: %s\nNew phone: %s\n", e.Delivery.Address, e.Delivery.Phone)
	if e.Delivery.Notes != "" {
		fmt.Fprintf(&b, "New notes: %s\n", e.Delivery.Notes)
	}
	if e.Delivery.Latitude != nil && e.Delivery.Longitude != nil {
		fmt.Fprintf(&b, "Location: %.6f,%.6f\n", *e.Delivery.Latitude, *e.Delivery.Longitude)
	}
	return b.String()
}

type SMTPSender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (s SMTPSender) Send(_ context.Context, m Message) error {
	message := []byte("To: " + m.To + "\r\n" +
		"From: " + s.From + "\r\n" +
		"Subject: " + m.Subject + "\r\n" +
		"\r\n" +
		m.Body + "\r\n")

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	if err := smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{m.To}, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of mailing them. It stands in
// for SMTPSender when no mail relay is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, m Message) error {
	slog.InfoContext(ctx, "notification", slog.String("To", m.To), slog.String("Subject", m.Subject))
	return nil
}
