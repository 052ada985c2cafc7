package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"tourbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

var (
	ErrNoRecipient      = errors.New("notification has no recipient")
	ErrInvalidRecipient = errors.New("invalid notification recipient")
)

const defaultMailTimeout = 30 * time.Second

// SMTPMailer delivers HTML mail through an SMTP relay. Each delivery opens
// its own session, and the whole session is bounded by timeout.
type SMTPMailer struct {
	host     string
	port     int
	from     string
	username string
	password string
	timeout  time.Duration
	logger   *zerolog.Logger
}

func NewSMTPMailer(cfg config.MailConfig, logger *zerolog.Logger) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultMailTimeout
	}
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     from,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  timeout,
		logger:   logger,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if len(to) == 0 {
		return ErrNoRecipient
	}

	msg := mail.NewMsg()
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", m.from, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(m.host, m.options()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send via %s: %w", net.JoinHostPort(m.host, strconv.Itoa(m.port)), err)
	}

	m.logger.Debug().Strs("to", to).Str("subject", subject).Msg("Mail sent")
	return nil
}

func (m *SMTPMailer) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(m.dial),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}
	return opts
}

// dial puts a deadline on the connection so a relay that stops answering
// mid-session cannot hold the caller.
func (m *SMTPMailer) dial(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(m.timeout)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// LogMailer stands in when no SMTP relay is configured.
type LogMailer struct {
	logger *zerolog.Logger
}

func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, to []string, subject, _ string) error {
	if len(to) == 0 {
		return ErrNoRecipient
	}
	m.logger.Info().Strs("to", to).Str("subject", subject).Msg("Mail delivery disabled, message logged")
	return nil
}
