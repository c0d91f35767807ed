package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/mailer"
	"github.com/fieldverify/field-verify-api/workflow"
	"go.uber.org/zap"
)

// Mail exposes the generic outbound email relay used by the mobile clients.
type Mail struct {
	Relay *mailer.Relay
}

// SendEmailRequest is the expected post body for the relay endpoint. CaseID
// and RefNo only tag the log line for traceability.
type SendEmailRequest struct {
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	CaseID      string              `json:"caseId,omitempty"`
	RefNo       string              `json:"RefNo,omitempty"`
	Attachments []mailer.Attachment `json:"attachments"`
}

// SendEmailHandler relays an arbitrary email with optional URL attachments.
func (h *Mail) SendEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req SendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.To == "" || req.Subject == "" || req.Body == "" {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, &workflow.ValidationError{Field: "to", Reason: "to, subject and body are required"})
		return
	}

	if req.CaseID != "" {
		zap.S().Infow("relaying case email", "caseId", req.CaseID, "refNo", req.RefNo)
	}

	err := h.Relay.Send(mailer.Message{
		To:          req.To,
		Subject:     req.Subject,
		Body:        req.Body,
		Attachments: req.Attachments,
	})
	if err != nil {
		config.ErrorStatus("failed to send email", http.StatusInternalServerError, w, err)
		return
	}

	b, _ := json.Marshal(map[string]string{"message": "email sent"})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
