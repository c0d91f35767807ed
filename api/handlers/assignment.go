package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/fieldverify/field-verify-api/api"
	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/models"
	"github.com/fieldverify/field-verify-api/workflow"
)

// Assignment exported for testing purposes
type Assignment struct {
	DB  databases.CaseDatabase
	RDB databases.RevertedCaseDatabase
	MDB databases.MemberDatabase
}

type assignRequest struct {
	CaseIDs    []string `json:"caseIds"`
	MemberName string   `json:"memberName"`
}

type assignResponse struct {
	Assigned []string `json:"assigned"`
	Failed   []string `json:"failed"`
	Warning  string   `json:"warning,omitempty"`
}

// AssignCasesHandler binds the selected cases to the named member. Each case
// is written individually; failures are captured per case and reported back
// rather than swallowed.
func (a Assignment) AssignCasesHandler(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if len(req.CaseIDs) == 0 {
		config.ErrorStatus("assignment blocked", http.StatusBadRequest, w, &workflow.ValidationError{Field: "caseIds", Reason: "no cases selected"})
		return
	}
	if req.MemberName == "" {
		config.ErrorStatus("assignment blocked", http.StatusBadRequest, w, &workflow.ValidationError{Field: "memberName", Reason: "member name is required"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	member, err := a.MDB.FindOne(ctx, bson.M{
		"name": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(req.MemberName) + "$", Options: "i"},
	})
	cancel()
	if err != nil {
		config.ErrorStatus("assignment blocked", http.StatusBadRequest, w, &workflow.ValidationError{Field: "memberName", Reason: "does not resolve to a known member"})
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	assignSet := bson.M{
		"status":       models.StatusAssigned,
		"assignedTo":   member.ID.Hex(),
		"assigneeName": member.Name,
		"assigneeRole": member.Role,
		"assignedAt":   now,
	}

	resp := assignResponse{Assigned: []string{}, Failed: []string{}}
	for _, id := range req.CaseIDs {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			resp.Failed = append(resp.Failed, id)
			continue
		}

		ctx, cancel := api.WithQueryTimeout(r.Context())
		matched, err := a.DB.UpdateOne(ctx,
			bson.M{"_id": oid, "status": bson.M{"$in": []string{models.StatusFired, models.StatusAssigned, models.StatusReverted}}},
			bson.M{"$set": assignSet, "$inc": bson.M{"rev": 1}},
		)
		cancel()
		if err != nil {
			zap.S().Errorw("failed to assign case", "caseID", id, "error", err)
			resp.Failed = append(resp.Failed, id)
			continue
		}
		if matched == 0 {
			// Not in the active collection; a previously reverted case is
			// re-created as a fresh assigned case.
			if a.reassignReverted(r, oid, member, now) {
				resp.Assigned = append(resp.Assigned, id)
				BroadcastCaseUpdate(id, models.StatusAssigned, member.ID.Hex())
				continue
			}
			resp.Failed = append(resp.Failed, id)
			continue
		}
		resp.Assigned = append(resp.Assigned, id)
		BroadcastCaseUpdate(id, models.StatusAssigned, member.ID.Hex())
	}

	if len(resp.Failed) > 0 {
		warn := &workflow.ConsistencyWarning{Op: "assign", Failed: resp.Failed}
		zap.S().Warnw("partial assignment", "failed", resp.Failed)
		resp.Warning = warn.Error()
	}

	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// reassignReverted moves a reverted record back into the active collection as
// a fresh assigned case, dropping the old evidence and audit state.
func (a Assignment) reassignReverted(r *http.Request, oid primitive.ObjectID, member *models.Member, now primitive.DateTime) bool {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	reverted, err := a.RDB.FindOne(ctx, bson.M{"$or": []bson.M{{"_id": oid}, {"case._id": oid}}})
	if err != nil {
		return false
	}

	fresh := reverted.Case
	fresh.ID = primitive.NewObjectID()
	fresh.Status = models.StatusAssigned
	fresh.AssignedTo = member.ID.Hex()
	fresh.AssigneeName = member.Name
	fresh.AssigneeRole = member.Role
	fresh.AssignedAt = now
	fresh.PhotosFolder = nil
	fresh.PhotosFolderLink = ""
	fresh.FilledForm = nil
	fresh.FormCompleted = false
	fresh.AuditFeedback = ""
	fresh.PhotosToRedo = nil
	fresh.PendingFinalize = false
	fresh.CompletedAt = 0
	fresh.FinalizedAt = 0
	fresh.FinalizedBy = ""
	fresh.Rev = 1

	if _, err := a.DB.InsertOne(ctx, fresh); err != nil {
		zap.S().Errorw("failed to re-create reverted case", "caseID", oid.Hex(), "error", err)
		return false
	}
	if err := a.RDB.DeleteOne(ctx, bson.M{"_id": reverted.ID}); err != nil {
		// the fresh case exists; the stale reverted record is a cleanup task
		zap.S().Warnw("failed to remove reverted record after reassignment", "revertedID", reverted.ID.Hex(), "error", err)
	}
	return true
}
