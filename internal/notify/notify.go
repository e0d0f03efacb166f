// Package notify delivers verification and password reset links over
// SMTP. Deliveries are queued and sent by a background worker so the
// triggering request never waits on the mail transport; failures are
// logged and counted but never propagated.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/obs"
)

const queueDepth = 256

type message struct {
	to      string
	subject string
	body    string
}

// Mailer implements auth.Notifier over SMTP with an async queue.
type Mailer struct {
	addr    string
	from    string
	appURL  string
	auth    smtp.Auth
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	queue   chan message
	done    chan struct{}
	closeMu sync.Once
}

// NewMailer constructs a Mailer and starts its delivery worker.
// user/pass may be empty for unauthenticated relays.
func NewMailer(addr, from, appURL, user, pass string) *Mailer {
	m := &Mailer{
		addr:   addr,
		from:   from,
		appURL: strings.TrimRight(appURL, "/"),
		send:   smtp.SendMail,
		queue:  make(chan message, queueDepth),
		done:   make(chan struct{}),
	}
	if user != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		m.auth = smtp.PlainAuth("", user, pass, host)
	}
	go m.worker()
	return m
}

// UserRegistered queues the verification email.
func (m *Mailer) UserRegistered(_ context.Context, user *auth.User, verificationToken string) {
	link := fmt.Sprintf("%s/v1/auth/verify-email/%s", m.appURL, verificationToken)
	m.enqueue(message{
		to:      user.Email,
		subject: "Verify your email",
		body:    fmt.Sprintf("Hello %s,\r\n\r\nPlease verify your email by visiting:\r\n%s\r\n\r\nThe link expires in 24 hours.\r\n", user.Name, link),
	})
}

// PasswordForgotten queues the reset email.
func (m *Mailer) PasswordForgotten(_ context.Context, user *auth.User, resetToken string) {
	link := fmt.Sprintf("%s/v1/auth/reset-password/%s", m.appURL, resetToken)
	m.enqueue(message{
		to:      user.Email,
		subject: "Reset your password",
		body:    fmt.Sprintf("Hello %s,\r\n\r\nReset your password by visiting:\r\n%s\r\n\r\nThe link expires in 24 hours.\r\n", user.Name, link),
	})
}

// enqueue drops the message when the queue is saturated rather than
// blocking the request path.
func (m *Mailer) enqueue(msg message) {
	select {
	case m.queue <- msg:
	default:
		obs.IncNotifyFailure()
		obs.LogEventf("notify.queue_full", "to=%s subject=%q", msg.to, msg.subject)
	}
}

func (m *Mailer) worker() {
	for {
		select {
		case msg := <-m.queue:
			m.deliver(msg)
		case <-m.done:
			// Drain what is already queued before stopping.
			for {
				select {
				case msg := <-m.queue:
					m.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (m *Mailer) deliver(msg message) {
	payload := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		m.from, msg.to, msg.subject, msg.body)
	if err := m.send(m.addr, m.auth, m.from, []string{msg.to}, []byte(payload)); err != nil {
		obs.IncNotifyFailure()
		obs.LogEventf("notify.delivery_failed", "to=%s err=%v", msg.to, err)
	}
}

// Close stops the delivery worker after draining the queue.
func (m *Mailer) Close() {
	m.closeMu.Do(func() { close(m.done) })
}

var _ auth.Notifier = (*Mailer)(nil)
