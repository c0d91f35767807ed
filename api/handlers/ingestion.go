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
	"github.com/fieldverify/field-verify-api/ingest"
	"github.com/fieldverify/field-verify-api/models"
	"github.com/fieldverify/field-verify-api/workflow"
)

// Ingestion exported for testing purposes
type Ingestion struct {
	DB  databases.CaseDatabase
	MDB databases.MemberDatabase
}

type importRequest struct {
	Mode string       `json:"mode"`
	Rows []ingest.Row `json:"rows"`
}

type importResponse struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
}

// ImportCasesHandler normalizes raw spreadsheet rows into cases, skipping
// duplicates on the full identity tuple. In automate mode rows carrying a
// known assignee name are created directly in assigned status.
func (i Ingestion) ImportCasesHandler(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if len(req.Rows) == 0 {
		config.ErrorStatus("import blocked", http.StatusBadRequest, w, &workflow.ValidationError{Field: "rows", Reason: "no rows supplied"})
		return
	}

	now := time.Now()
	var resp importResponse
	for _, row := range req.Rows {
		caseRecord, ok := ingest.Normalize(row, now)
		if !ok {
			// rows without a reference id are skipped silently
			continue
		}

		ctx, cancel := api.WithQueryTimeout(r.Context())
		count, err := i.DB.CountDocuments(ctx, ingest.DuplicateFilter(caseRecord))
		cancel()
		if err != nil {
			config.ErrorStatus("failed to check for duplicate case", http.StatusInternalServerError, w, err)
			return
		}
		if count > 0 {
			resp.Duplicates++
			continue
		}

		if req.Mode == "automate" {
			if name := row.AssigneeName(); name != "" {
				i.autoAssign(r, &caseRecord, name, now)
			}
		}

		ctx, cancel = api.WithQueryTimeout(r.Context())
		_, err = i.DB.InsertOne(ctx, caseRecord)
		cancel()
		if err != nil {
			zap.S().Errorw("failed to insert imported case",
				"refNo", caseRecord.RefNo,
				"error", err,
			)
			continue
		}
		resp.Added++
	}

	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// autoAssign binds the new case to the member whose name matches the row's
// "fe name" column, case-insensitively. Unknown names leave the case fired.
func (i Ingestion) autoAssign(r *http.Request, caseRecord *models.Case, name string, now time.Time) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	member, err := i.MDB.FindOne(ctx, bson.M{
		"name": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(name) + "$", Options: "i"},
	})
	if err != nil {
		zap.S().Debugf("no member matched assignee name '%v', case stays fired", name)
		return
	}
	caseRecord.Status = models.StatusAssigned
	caseRecord.AssignedTo = member.ID.Hex()
	caseRecord.AssigneeName = member.Name
	caseRecord.AssigneeRole = member.Role
	caseRecord.AssignedAt = primitive.NewDateTimeFromTime(now)
}
