package mail

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jhillyerd/enmime"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender builds MIME messages with enmime and relays them over SMTP.
// smtp.SendMail upgrades to STARTTLS when the server offers it.
type SMTPSender struct {
	cfg      SMTPConfig
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Sender = (*SMTPSender)(nil)

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPSender{cfg: cfg, auth: auth, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := s.build(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendMail(addr, s.auth, s.cfg.From, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("mail: sending to %s: %w", msg.To, err)
	}
	return nil
}

// build renders msg as a multipart/alternative MIME document.
func (s *SMTPSender) build(msg Message) ([]byte, error) {
	b := enmime.Builder().
		From(s.cfg.FromName, s.cfg.From).
		To("", msg.To).
		Subject(msg.Subject).
		Text([]byte(msg.Text))
	if msg.HTML != "" {
		b = b.HTML([]byte(msg.HTML))
	}

	part, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("mail: building message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("mail: encoding message: %w", err)
	}
	return buf.Bytes(), nil
}
