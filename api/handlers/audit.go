package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/fieldverify/field-verify-api/api"
	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/mailer"
	"github.com/fieldverify/field-verify-api/models"
	"github.com/fieldverify/field-verify-api/workflow"
)

// Audit exposes the admin decisions on a submitted case: approve, reject,
// rectify and close.
type Audit struct {
	DB        databases.CaseDatabase
	Relay     *mailer.Relay
	Recipient string
}

// ApproveRequest is the expected post body for approvals.
type ApproveRequest struct {
	FinalizedBy string `json:"finalizedBy"`
}

// RejectRequest is the expected post body for rejections.
type RejectRequest struct {
	Feedback       string   `json:"feedback"`
	RedoCategories []string `json:"redoCategories"`
}

// CloseRequest is the expected post body for closing a case without approval.
type CloseRequest struct {
	ClosedBy string `json:"closedBy"`
	Comments string `json:"comments"`
}

// ApproveHandler finalizes an audited case. The report email must be accepted
// by the relay before the case is marked completed; until then the case stays
// in audit flagged pendingFinalize so the retry job can pick it up.
func (a *Audit) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	caseRecord, ok := a.loadCase(w, r)
	if !ok {
		return
	}
	if !workflow.CanTransition(caseRecord.Status, models.StatusCompleted) {
		config.ErrorStatus("approval blocked", http.StatusConflict, w, &workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot approve a %s case", caseRecord.Status)})
		return
	}

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	// Step one of the saga: record the intent before any side effect, so a
	// crash between the email and the status flip is recoverable.
	ctx, cancel := api.WithQueryTimeout(r.Context())
	err := casUpdate(ctx, a.DB, caseRecord, bson.M{
		"$set": bson.M{"pendingFinalize": true, "finalizedBy": req.FinalizedBy},
	})
	cancel()
	if err == workflow.ErrStaleRevision {
		config.ErrorStatus("case was modified concurrently", http.StatusConflict, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to update case", http.StatusInternalServerError, w, err)
		return
	}
	caseRecord.Rev++
	caseRecord.PendingFinalize = true
	caseRecord.FinalizedBy = req.FinalizedBy

	if err := a.Relay.Send(mailer.BuildFinalizeMessage(*caseRecord, a.Recipient)); err != nil {
		zap.S().Errorw("report email failed, case left pending finalize",
			"caseID", caseRecord.ID.Hex(),
			"error", err,
		)
		config.ErrorStatus("report email failed, approval will be retried", http.StatusBadGateway, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	ctx, cancel = api.WithQueryTimeout(r.Context())
	err = casUpdate(ctx, a.DB, caseRecord, bson.M{
		"$set": bson.M{
			"status":          models.StatusCompleted,
			"finalizedAt":     now,
			"pendingFinalize": false,
		},
		// the form went out with the report; the record keeps only the link
		"$unset": bson.M{"filledForm": ""},
	})
	cancel()
	if err != nil {
		// Email already went out; the retry job completes the flip.
		zap.S().Errorw("finalize persist failed after email success",
			"caseID", caseRecord.ID.Hex(),
			"error", err,
		)
		config.ErrorStatus("failed to persist approval", http.StatusInternalServerError, w, err)
		return
	}

	BroadcastCaseUpdate(caseRecord.ID.Hex(), models.StatusCompleted, caseRecord.AssignedTo)
	b, _ := json.Marshal(map[string]string{"status": models.StatusCompleted})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RejectHandler sends an audited case back to its assignee with feedback and
// the list of photo categories that must be recaptured.
func (a *Audit) RejectHandler(w http.ResponseWriter, r *http.Request) {
	caseRecord, ok := a.loadCase(w, r)
	if !ok {
		return
	}
	if !workflow.CanTransition(caseRecord.Status, models.StatusAssigned) {
		config.ErrorStatus("rejection blocked", http.StatusConflict, w, &workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot reject a %s case", caseRecord.Status)})
		return
	}

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Feedback == "" {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, &workflow.ValidationError{Field: "feedback", Reason: "feedback is required on rejection"})
		return
	}
	for _, category := range req.RedoCategories {
		if _, ok := caseRecord.PhotosFolder[category]; !ok {
			config.ErrorStatus("invalid request", http.StatusBadRequest, w, &workflow.ValidationError{Field: "redoCategories", Reason: fmt.Sprintf("case has no photos in category %q", category)})
			return
		}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	err := casUpdate(ctx, a.DB, caseRecord, bson.M{
		"$set": bson.M{
			"status":        models.StatusAssigned,
			"auditFeedback": req.Feedback,
			"photosToRedo":  req.RedoCategories,
		},
	})
	if err == workflow.ErrStaleRevision {
		config.ErrorStatus("case was modified concurrently", http.StatusConflict, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to update case", http.StatusInternalServerError, w, err)
		return
	}

	BroadcastCaseUpdate(caseRecord.ID.Hex(), models.StatusAssigned, caseRecord.AssignedTo)
	b, _ := json.Marshal(map[string]string{"status": models.StatusAssigned})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RectifyHandler reopens a completed or closed case back into audit so the
// decision can be corrected.
func (a *Audit) RectifyHandler(w http.ResponseWriter, r *http.Request) {
	caseRecord, ok := a.loadCase(w, r)
	if !ok {
		return
	}
	if !workflow.CanTransition(caseRecord.Status, models.StatusAudit) || caseRecord.Status == models.StatusAssigned {
		config.ErrorStatus("rectify blocked", http.StatusConflict, w, &workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot rectify a %s case", caseRecord.Status)})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	err := casUpdate(ctx, a.DB, caseRecord, bson.M{
		"$set":   bson.M{"status": models.StatusAudit, "pendingFinalize": false},
		"$unset": bson.M{"finalizedAt": "", "closedBy": ""},
	})
	if err == workflow.ErrStaleRevision {
		config.ErrorStatus("case was modified concurrently", http.StatusConflict, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to update case", http.StatusInternalServerError, w, err)
		return
	}

	BroadcastCaseUpdate(caseRecord.ID.Hex(), models.StatusAudit, caseRecord.AssignedTo)
	b, _ := json.Marshal(map[string]string{"status": models.StatusAudit})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CloseHandler closes an audited case without approval, recording who closed
// it and why.
func (a *Audit) CloseHandler(w http.ResponseWriter, r *http.Request) {
	caseRecord, ok := a.loadCase(w, r)
	if !ok {
		return
	}
	if !workflow.CanTransition(caseRecord.Status, models.StatusClosed) {
		config.ErrorStatus("close blocked", http.StatusConflict, w, &workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot close a %s case", caseRecord.Status)})
		return
	}

	var req CloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Comments == "" {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, &workflow.ValidationError{Field: "comments", Reason: "comments are required to close a case"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	err := casUpdate(ctx, a.DB, caseRecord, bson.M{
		"$set": bson.M{
			"status":   models.StatusClosed,
			"closedBy": req.ClosedBy,
			"comments": req.Comments,
		},
	})
	if err == workflow.ErrStaleRevision {
		config.ErrorStatus("case was modified concurrently", http.StatusConflict, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to update case", http.StatusInternalServerError, w, err)
		return
	}

	BroadcastCaseUpdate(caseRecord.ID.Hex(), models.StatusClosed, caseRecord.AssignedTo)
	b, _ := json.Marshal(map[string]string{"status": models.StatusClosed})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (a *Audit) loadCase(w http.ResponseWriter, r *http.Request) (*models.Case, bool) {
	caseID := mux.Vars(r)["case_id"]
	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return nil, false
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	caseRecord, err := a.DB.FindOne(ctx, bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get case by ID", http.StatusNotFound, w, err)
		return nil, false
	}
	return caseRecord, true
}
