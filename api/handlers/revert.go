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
	"github.com/fieldverify/field-verify-api/models"
	"github.com/fieldverify/field-verify-api/workflow"
)

// Revert pulls an unstarted or in-progress case out of the active pool into
// the reverted archive.
type Revert struct {
	DB  databases.CaseDatabase
	RDB databases.RevertedCaseDatabase
}

// RevertRequest is the expected post body for reverting a case.
type RevertRequest struct {
	RevertedBy   string `json:"revertedBy"`
	RevertReason string `json:"revertReason"`
}

// RevertCaseHandler archives the case into the reverted collection and removes
// it from the active collection. The archive write happens first so a crash in
// between leaves a duplicate, never a lost case.
func (v *Revert) RevertCaseHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req RevertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.RevertReason == "" {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, &workflow.ValidationError{Field: "revertReason", Reason: "a revert reason is required"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	caseRecord, err := v.DB.FindOne(ctx, bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get case by ID", http.StatusNotFound, w, err)
		return
	}
	if !workflow.CanTransition(caseRecord.Status, models.StatusReverted) {
		config.ErrorStatus("revert blocked", http.StatusConflict, w, &workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot revert a %s case", caseRecord.Status)})
		return
	}

	archived := *caseRecord
	archived.Status = models.StatusReverted
	reverted := models.RevertedCase{
		ID:           primitive.NewObjectID(),
		Case:         archived,
		RevertedBy:   req.RevertedBy,
		RevertReason: req.RevertReason,
		RevertedAt:   primitive.NewDateTimeFromTime(time.Now()),
	}
	if _, err := v.RDB.InsertOne(ctx, reverted); err != nil {
		config.ErrorStatus("failed to archive reverted case", http.StatusInternalServerError, w, err)
		return
	}

	if err := v.DB.DeleteOne(ctx, bson.M{"_id": cID, "rev": caseRecord.Rev}); err != nil {
		// The archive copy exists; reassignment resolves the duplicate.
		zap.S().Errorw("failed to remove reverted case from active pool",
			"caseID", caseID,
			"error", err,
		)
		config.ErrorStatus("case archived but not removed from active pool", http.StatusInternalServerError, w, err)
		return
	}

	BroadcastCaseUpdate(caseID, models.StatusReverted, caseRecord.AssignedTo)
	b, _ := json.Marshal(map[string]string{"status": models.StatusReverted, "revertedId": reverted.ID.Hex()})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RevertedCasesHandler lists the reverted archive, newest first.
func (v *Revert) RevertedCasesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	reverted, err := v.RDB.Find(ctx, bson.M{})
	if err != nil {
		config.ErrorStatus("failed to get reverted cases", http.StatusNotFound, w, err)
		return
	}
	b, err := json.Marshal(reverted)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
