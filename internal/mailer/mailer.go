// Package mailer spools the Excel-rollover notification as a
// file-backed outbox and drains it over SMTPS, the email leg of the
// recognition engine's original Excel-to-mail flow. No SMTP client
// library appears anywhere in the example corpus, so the MIME envelope
// and the SMTPS handshake are built directly over net/smtp and
// mime/multipart.
package mailer

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"path/filepath"
	"time"

	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/fsutil"
)

const messageExtension = ".eml"

// Queue spools pending notification messages under dir and drains the
// oldest one per Drain call, mirroring outbox.Outbox's one-per-pump
// discipline.
type Queue struct {
	fs  fsutil.FileSystem
	dir string
}

// NewQueue builds a Queue spooling into dir.
func NewQueue(fs fsutil.FileSystem, dir string) *Queue {
	return &Queue{fs: fs, dir: dir}
}

// Enqueue spools one rollover notification referencing attachmentPath
// (an already-written .xlsx workbook). The template subject/body come
// from cfg; attachmentPath's basename becomes the attached file's name.
func (q *Queue) Enqueue(cfg appconfig.Email, attachmentPath string) error {
	data, err := q.fs.ReadFile(attachmentPath)
	if err != nil {
		return fmt.Errorf("mailer: read attachment: %w", err)
	}

	raw, err := buildMessage(cfg, filepath.Base(attachmentPath), data)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s/%d%s", q.dir, time.Now().UnixNano(), messageExtension)
	return fsutil.AtomicWriteFile(q.fs, name, raw, 0644)
}

// Drain attempts delivery of the oldest spooled message, returning
// false if the outbox was empty. A delivery failure leaves the message
// spooled for the next housekeeper tick.
func (q *Queue) Drain(cfg appconfig.Email) (bool, error) {
	entries, err := fsutil.ListOldestFirst(q.dir, messageExtension)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	raw, err := q.fs.ReadFile(entries[0].Path)
	if err != nil {
		return false, err
	}
	if err := sendSMTPS(cfg, raw); err != nil {
		return false, err
	}
	return true, q.fs.Remove(entries[0].Path)
}

// buildMessage renders a single-attachment MIME message from cfg's
// subject/body/sender/recipients template.
func buildMessage(cfg appconfig.Email, attachmentName string, attachment []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", cfg.Sender)
	fmt.Fprintf(&buf, "To: %s\r\n", joinComma(cfg.Recipients))
	fmt.Fprintf(&buf, "Subject: %s\r\n", cfg.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	bodyPart, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, fmt.Errorf("mailer: body part: %w", err)
	}
	if _, err := bodyPart.Write([]byte(cfg.Body)); err != nil {
		return nil, fmt.Errorf("mailer: write body: %w", err)
	}

	attachHeader := textproto.MIMEHeader{
		"Content-Type":              {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf(`attachment; filename="%s"`, attachmentName)},
	}
	attachPart, err := w.CreatePart(attachHeader)
	if err != nil {
		return nil, fmt.Errorf("mailer: attachment part: %w", err)
	}
	if _, err := attachPart.Write(base64Encode(attachment)); err != nil {
		return nil, fmt.Errorf("mailer: write attachment: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("mailer: close envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// sendSMTPS opens a TLS connection to cfg's relay and delivers raw as
// one message's DATA section; raw already carries its own headers.
func sendSMTPS(cfg appconfig.Email, raw []byte) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return fmt.Errorf("mailer: dial %s: %w", addr, err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("mailer: smtp handshake: %w", err)
	}
	defer c.Close()

	if cfg.Username != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("mailer: auth: %w", err)
		}
	}

	if err := c.Mail(cfg.Sender); err != nil {
		return fmt.Errorf("mailer: MAIL FROM: %w", err)
	}
	for _, to := range cfg.Recipients {
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("mailer: RCPT TO %s: %w", to, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("mailer: DATA: %w", err)
	}
	if _, err := wc.Write(raw); err != nil {
		return fmt.Errorf("mailer: write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("mailer: close message: %w", err)
	}
	return c.Quit()
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// base64Encode wraps data at the standard 76-character MIME line length.
func base64Encode(data []byte) []byte {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)
	var out bytes.Buffer
	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		out.WriteString(encoded[i:end])
		out.WriteString("\r\n")
	}
	return out.Bytes()
}
