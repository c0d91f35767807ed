// Package mailer sends the finalize/report emails through SendGrid. Attachment
// URLs are downloaded with a bounded client and attached base64, mirroring the
// relay contract the mobile clients already speak.
package mailer

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/fieldverify/field-verify-api/models"
	templates "github.com/fieldverify/field-verify-api/templates/html"
)

// Attachment is a remote file to download and attach.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Message is one outbound relay email.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender abstracts the SendGrid send call for tests.
type Sender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// Relay downloads attachments and sends mail via SendGrid.
type Relay struct {
	From   string
	sender Sender
	client *http.Client
}

// New builds a relay with the real SendGrid client.
func New(apiKey, from string) *Relay {
	return &Relay{
		From:   from,
		sender: sendgrid.NewSendClient(apiKey),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithSender builds a relay with an injected sender and http client,
// used by tests.
func NewWithSender(from string, sender Sender, client *http.Client) *Relay {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Relay{From: from, sender: sender, client: client}
}

// Send downloads every attachment and relays the message. A non-2xx SendGrid
// response is an error; callers must not mark work finalized without a nil
// return.
func (r *Relay) Send(msg Message) error {
	from := mail.NewEmail("Field Verify", r.From)
	to := mail.NewEmail("", msg.To)
	htmlBody := templates.RenderGenericEmail(msg.Subject, msg.Body)
	m := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, htmlBody)

	for _, att := range msg.Attachments {
		data, err := r.fetch(att.URL)
		if err != nil {
			return fmt.Errorf("failed to fetch attachment %s: %w", att.Filename, err)
		}
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(data))
		a.SetFilename(att.Filename)
		a.SetType(contentTypeFor(att.Filename))
		a.SetDisposition("attachment")
		m.AddAttachment(a)
	}

	resp, err := r.sender.Send(m)
	if err != nil {
		return fmt.Errorf("mail relay send failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.S().Warnw("mail relay returned non-2xx status",
			"to", msg.To,
			"statusCode", resp.StatusCode,
			"body", resp.Body,
		)
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Relay) fetch(url string) ([]byte, error) {
	resp, err := r.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(path.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// BuildFinalizeMessage composes the approval email for a case: report PDF plus
// the filled form when present. Shared by the approve handler and the
// finalize-retry scheduler.
func BuildFinalizeMessage(c models.Case, recipient string) Message {
	subject := fmt.Sprintf("Verification Report %s - %s", c.RefNo, c.CandidateName)
	body := strings.Join([]string{
		fmt.Sprintf("Verification case %s has been approved.", c.RefNo),
		fmt.Sprintf("Candidate: %s", c.CandidateName),
		fmt.Sprintf("Client: %s", c.Client),
		fmt.Sprintf("Check type: %s", c.CheckType),
		"The report and filled form are attached.",
	}, "\n")

	msg := Message{To: recipient, Subject: subject, Body: body}
	if c.PhotosFolderLink != "" {
		msg.Attachments = append(msg.Attachments, Attachment{
			URL:      c.PhotosFolderLink,
			Filename: fmt.Sprintf("%s-report.pdf", c.RefNo),
		})
	}
	if c.FilledForm != nil && c.FilledForm.URL != "" {
		msg.Attachments = append(msg.Attachments, Attachment{
			URL:      c.FilledForm.URL,
			Filename: fmt.Sprintf("%s-form.pdf", c.RefNo),
		})
	}
	return msg
}
