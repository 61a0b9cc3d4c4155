package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"booktracker/internal/model"

	"github.com/pkg/errors"
)

var ErrNotConfigured = errors.New("smtp not configured")

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

var matchTemplate = template.Must(template.New("match").Parse(`<html><body>
<p>We found {{len .Results}} listing(s) for <b>{{.BookTitle}}</b>:</p>
<ul>
{{- range .Results}}
<li>
<a href="{{.Link}}">{{.Title}}</a><br>
Price: {{.Price}}<br>
Source: {{.Source}}<br>
{{- if .Seller}}
Seller: {{.Seller}}<br>
{{- end}}
{{- if .Condition}}
Condition: {{.Condition}}<br>
{{- end}}
</li>
{{- end}}
</ul>
</body></html>
`))

func Subject(bookTitle string, n int) string {
	return fmt.Sprintf("Found %d listing(s) for \"%s\"", n, bookTitle)
}

// BuildMatchMessage renders the full RFC 5322 message sent for one book's results.
func (m Mailer) BuildMatchMessage(to, bookTitle string, rs []model.SearchResult) ([]byte, error) {
	body := bytes.Buffer{}
	err := matchTemplate.Execute(&body, struct {
		BookTitle string
		Results   []model.SearchResult
	}{bookTitle, rs})
	if err != nil {
		return nil, errors.Wrapf(err, "BuildMatchMessage: error rendering body, book: %s", bookTitle)
	}

	msg := bytes.Buffer{}
	msg.WriteString("From: " + headerValue(m.From) + "\r\n")
	msg.WriteString("To: " + headerValue(to) + "\r\n")
	msg.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", headerValue(Subject(bookTitle, len(rs)))) + "\r\n")
	msg.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// SendMatch emails the results found for one book.
func (m Mailer) SendMatch(ctx context.Context, to, bookTitle string, rs []model.SearchResult) error {
	if m.Host == "" || m.From == "" {
		return ErrNotConfigured
	}
	msg, err := m.BuildMatchMessage(to, bookTitle, rs)
	if err != nil {
		return err
	}
	return errors.WithMessagef(m.send(ctx, to, msg), "SendMatch: to: %s, book: %s", to, bookTitle)
}

func (m Mailer) send(ctx context.Context, to string, msg []byte) error {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "send: error connecting to SMTP server %s", addr)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return errors.Wrap(err, "send: error creating SMTP client")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err = c.StartTLS(&tls.Config{ServerName: m.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return errors.Wrap(err, "send: error starting TLS")
		}
	}
	if m.Username != "" && m.Password != "" {
		if err = c.Auth(smtp.PlainAuth("", m.Username, m.Password, m.Host)); err != nil {
			return errors.Wrap(err, "send: SMTP authentication error")
		}
	}
	from := m.From
	if a, err := mail.ParseAddress(m.From); err == nil {
		from = a.Address
	}
	if err = c.Mail(from); err != nil {
		return errors.Wrapf(err, "send: error setting sender %s", from)
	}
	if err = c.Rcpt(to); err != nil {
		return errors.Wrapf(err, "send: error setting recipient %s", to)
	}
	w, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "send: error starting message")
	}
	if _, err = w.Write(msg); err != nil {
		return errors.Wrap(err, "send: error writing message")
	}
	if err = w.Close(); err != nil {
		return errors.Wrap(err, "send: error closing message")
	}
	// message is accepted once DATA is closed
	_ = c.Quit()
	return nil
}

func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
