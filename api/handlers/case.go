package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fieldverify/field-verify-api/api"
	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/models"
	"github.com/fieldverify/field-verify-api/workflow"
)

var (
	// Page denotes the starting Page for pagination results
	Page = 0
)

// Case exported for testing purposes
type Case struct {
	DB databases.CaseDatabase
}

// CaseByIDHandler returns a case by ID
func (c Case) CaseByIDHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]

	zap.S().Debugf("case_id: %v", caseID)

	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := c.DB.FindOne(ctx, bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get case by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CasesByAssigneeHandler returns all cases assigned to the given member,
// optionally filtered by status
func (c Case) CasesByAssigneeHandler(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["member_id"]
	status := r.URL.Query().Get("status")
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v", Limit|10))
	}
	limit64 := int64(Limit)
	Page = getPage(Page, r)
	skip64 := int64(Page * Limit)

	filter := bson.M{"assignedTo": memberID}
	if status != "" {
		filter["status"] = status
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := c.DB.Find(ctx, filter, &options.FindOptions{Limit: &limit64, Skip: &skip64})
	if err != nil {
		config.ErrorStatus("failed to get cases by assignee", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Case{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CasesByStatusHandler returns all cases in the given status, used by the
// admin and audit queues
func (c Case) CasesByStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := mux.Vars(r)["status"]
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v", Limit|10))
	}
	limit64 := int64(Limit)
	Page = getPage(Page, r)
	skip64 := int64(Page * Limit)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := c.DB.Find(ctx, bson.M{"status": status}, &options.FindOptions{Limit: &limit64, Skip: &skip64})
	if err != nil {
		config.ErrorStatus("failed to get cases by status", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Case{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CaseStatsHandler returns case counts per status and per assignee for the
// admin dashboard
func (c Case) CaseStatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	statuses := []string{
		models.StatusFired, models.StatusAssigned, models.StatusAudit,
		models.StatusReverted, models.StatusCompleted, models.StatusClosed,
	}
	byStatus := make(map[string]int64, len(statuses))
	for _, s := range statuses {
		count, err := c.DB.CountDocuments(ctx, bson.M{"status": s})
		if err != nil {
			config.ErrorStatus("failed to count cases", http.StatusInternalServerError, w, err)
			return
		}
		byStatus[s] = count
	}

	cur, err := c.DB.Aggregate(ctx, []bson.M{
		{"$match": bson.M{"assigneeName": bson.M{"$ne": ""}}},
		{"$group": bson.M{"_id": "$assigneeName", "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		config.ErrorStatus("failed to aggregate cases by assignee", http.StatusInternalServerError, w, err)
		return
	}
	var grouped []struct {
		Name  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.Decode(&grouped); err != nil {
		config.ErrorStatus("failed to decode assignee counts", http.StatusInternalServerError, w, err)
		return
	}
	byAssignee := make(map[string]int64, len(grouped))
	for _, g := range grouped {
		byAssignee[g.Name] = g.Count
	}

	b, err := json.Marshal(map[string]interface{}{
		"byStatus":   byStatus,
		"byAssignee": byAssignee,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// casUpdate applies a check-and-set update against the case's current
// revision. The rev counter is bumped on success; a miss means another actor
// got there first.
func casUpdate(ctx context.Context, db databases.CaseDatabase, caseRecord *models.Case, update bson.M) error {
	if update == nil {
		update = bson.M{}
	}
	update["$inc"] = bson.M{"rev": 1}
	matched, err := db.UpdateOne(ctx, bson.M{"_id": caseRecord.ID, "rev": caseRecord.Rev}, update)
	if err != nil {
		return err
	}
	if matched == 0 {
		return workflow.ErrStaleRevision
	}
	return nil
}

func getPage(Page int, r *http.Request) int {
	if r.URL.Query().Get("page") == "" {
		zap.S().Warnf("page not set, using default of %v", Page)
	} else {
		var err error
		Page, err = strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			zap.S().Errorf(fmt.Sprintf("error parsing page number: %v", err))
		}
		if Page < 0 {
			zap.S().Warnf(fmt.Sprintf("cannot process page number less than 1. Got: %v", Page))
			return 0
		}
	}
	return Page
}
