package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldverify/field-verify-api/api"
	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/models"
	"github.com/fieldverify/field-verify-api/policy"
	"github.com/fieldverify/field-verify-api/workflow"
)

// Capture exported for testing purposes
type Capture struct {
	DB databases.CaseDatabase
}

type addPhotoRequest struct {
	Category  string         `json:"category"`
	URI       string         `json:"uri"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Geotag    *models.Geotag `json:"geotag,omitempty"`
	Address   string         `json:"address,omitempty"`
}

// AddPhotoHandler appends a capture event to a category. Loss of GPS never
// blocks capture; the address falls back to "Location unavailable".
func (c Capture) AddPhotoHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req addPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Category == "" || req.URI == "" {
		config.ErrorStatus("capture blocked", http.StatusBadRequest, w, &workflow.ValidationError{Field: "category/uri", Reason: "both are required"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	caseRecord, err := c.DB.FindOne(ctx, bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get case by ID", http.StatusNotFound, w, err)
		return
	}
	if caseRecord.Status != models.StatusAssigned {
		config.ErrorStatus("capture blocked", http.StatusConflict, w, &workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("case is %s, photos can only be captured while assigned", caseRecord.Status)})
		return
	}

	captured := time.Now()
	if req.Timestamp != nil {
		captured = *req.Timestamp
	}
	address := req.Address
	if address == "" {
		address = "Location unavailable"
	}
	photo := models.Photo{
		ID:        uuid.New().String(),
		URI:       req.URI,
		Timestamp: primitive.NewDateTimeFromTime(captured),
		Geotag:    req.Geotag,
		Address:   address,
	}

	err = casUpdate(ctx, c.DB, caseRecord, bson.M{
		"$push": bson.M{"photosFolder." + req.Category: photo},
	})
	if err == workflow.ErrStaleRevision {
		config.ErrorStatus("capture conflicted", http.StatusConflict, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to store photo", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(photo)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// DeletePhotoHandler removes a single photo from a category. This is a pure
// record mutation; remote objects are only touched at the next submission.
func (c Capture) DeletePhotoHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	caseID := vars["case_id"]
	category := vars["category"]
	photoID := vars["photo_id"]

	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	caseRecord, err := c.DB.FindOne(ctx, bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get case by ID", http.StatusNotFound, w, err)
		return
	}

	err = casUpdate(ctx, c.DB, caseRecord, bson.M{
		"$pull": bson.M{"photosFolder." + category: bson.M{"id": photoID}},
	})
	if err == workflow.ErrStaleRevision {
		config.ErrorStatus("delete conflicted", http.StatusConflict, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to delete photo", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"deleted": true}`))
}

// ChecklistHandler evaluates the case against its policy and reports what is
// still missing before submission.
func (c Capture) ChecklistHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	caseRecord, err := c.DB.FindOne(ctx, bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get case by ID", http.StatusNotFound, w, err)
		return
	}

	p := policy.SelectPolicy(*caseRecord)
	result := policy.Evaluate(*caseRecord, p)

	b, err := json.Marshal(map[string]interface{}{
		"policy": p.Name,
		"result": result,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type formRequest struct {
	URL string `json:"url"`
}

// UpdateFormHandler attaches the filled form artifact and marks the form
// complete.
func (c Capture) UpdateFormHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req formRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.URL == "" {
		config.ErrorStatus("form update blocked", http.StatusBadRequest, w, &workflow.ValidationError{Field: "url", Reason: "form url is required"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	caseRecord, err := c.DB.FindOne(ctx, bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get case by ID", http.StatusNotFound, w, err)
		return
	}

	err = casUpdate(ctx, c.DB, caseRecord, bson.M{
		"$set": bson.M{
			"filledForm": models.FilledForm{
				URL:       req.URL,
				UpdatedAt: primitive.NewDateTimeFromTime(time.Now()),
			},
			"formCompleted": true,
		},
	})
	if err == workflow.ErrStaleRevision {
		config.ErrorStatus("form update conflicted", http.StatusConflict, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to update form", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"formCompleted": true}`))
}
