package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldverify/field-verify-api/api/handlers"
	"github.com/fieldverify/field-verify-api/mailer"
)

func mailRequest(t *testing.T, body handlers.SendEmailRequest) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("POST", "/api/v1/send-email", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")
	return req
}

func TestMail_SendEmailHandlerMissingFields(t *testing.T) {
	h := &handlers.Mail{}
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SendEmailHandler).ServeHTTP(rr, mailRequest(t, handlers.SendEmailRequest{
		To: "ops@fieldverify.in",
	}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "to, subject and body are required")
}

func TestMail_SendEmailHandlerRelayFailure(t *testing.T) {
	sender := &relaySender{err: errors.New("sendgrid unreachable")}
	h := &handlers.Mail{Relay: mailer.NewWithSender("reports@fieldverify.in", sender, nil)}
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SendEmailHandler).ServeHTTP(rr, mailRequest(t, handlers.SendEmailRequest{
		To:      "ops@fieldverify.in",
		Subject: "Daily summary",
		Body:    "12 cases submitted today",
	}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to send email")
}

func TestMail_SendEmailHandlerSuccess(t *testing.T) {
	sender := &relaySender{statusCode: http.StatusAccepted}
	h := &handlers.Mail{Relay: mailer.NewWithSender("reports@fieldverify.in", sender, nil)}
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.SendEmailHandler).ServeHTTP(rr, mailRequest(t, handlers.SendEmailRequest{
		To:      "ops@fieldverify.in",
		Subject: "Daily summary",
		Body:    "12 cases submitted today",
	}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"message":"email sent"}`, rr.Body.String())
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, "Daily summary", sender.sent[0].Subject)
}
