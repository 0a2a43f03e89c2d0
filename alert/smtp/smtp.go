// Package smtp 通过 SMTP 发送告警邮件
package smtp

import (
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/go-gotop/subscribe/alert"
)

var (
	ErrMissingHost = errors.New("missing smtp host")
	ErrMissingFrom = errors.New("missing smtp sender")
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

func NewSender(opts ...Option) (*Sender, error) {
	o := &options{Port: 25}
	for _, opt := range opts {
		opt(o)
	}
	if o.Host == "" {
		return nil, ErrMissingHost
	}
	if o.From == "" {
		o.From = o.Username
	}
	if o.From == "" {
		return nil, ErrMissingFrom
	}
	s := &Sender{opts: o, send: smtp.SendMail}
	if o.Username != "" {
		s.auth = smtp.PlainAuth("", o.Username, o.Password, o.Host)
	}
	return s, nil
}

type Sender struct {
	opts *options
	auth smtp.Auth
	send sendFunc
}

var _ alert.Sender = (*Sender)(nil)

// Send 收件人为空时不发送
func (s *Sender) Send(content string, recipients []string, title string) error {
	if len(recipients) == 0 {
		return nil
	}
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	return s.send(addr, s.auth, s.opts.From, recipients, buildMessage(s.opts.From, recipients, title, content))
}

func buildMessage(from string, to []string, title, content string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", title))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(content)
	b.WriteString("\r\n")
	return []byte(b.String())
}
