package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/fieldverify/field-verify-api/api"
	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/jobs"
	"github.com/fieldverify/field-verify-api/models"
	"github.com/fieldverify/field-verify-api/pdfreport"
	"github.com/fieldverify/field-verify-api/policy"
	"github.com/fieldverify/field-verify-api/storage"
	"github.com/fieldverify/field-verify-api/workflow"
)

// Submission runs the submit pipeline: purge redo evidence, upload local
// photos, build and upload the report PDF, then flip the case into audit.
type Submission struct {
	DB      databases.CaseDatabase
	Storage storage.ObjectStorage
	Client  *http.Client
	Queue   *jobs.Queue
}

// SubmitCaseHandler validates readiness and hands the pipeline to the job
// queue so it completes independently of the caller. With ?wait=true the
// pipeline runs inline and the response carries the report link.
func (s *Submission) SubmitCaseHandler(w http.ResponseWriter, r *http.Request) {
	caseID := mux.Vars(r)["case_id"]
	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	caseRecord, err := s.DB.FindOne(ctx, bson.M{"_id": cID})
	cancel()
	if err != nil {
		config.ErrorStatus("failed to get case by ID", http.StatusNotFound, w, err)
		return
	}
	if !workflow.CanTransition(caseRecord.Status, models.StatusAudit) {
		config.ErrorStatus("submission blocked", http.StatusConflict, w, &workflow.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot submit a %s case", caseRecord.Status)})
		return
	}

	result := policy.Evaluate(*caseRecord, policy.SelectPolicy(*caseRecord))
	if !result.Ready {
		config.ErrorStatus("submission blocked", http.StatusUnprocessableEntity, w, &workflow.IncompleteRequirementsError{Missing: result.Missing})
		return
	}

	attemptID := uuid.New().String()
	if r.URL.Query().Get("wait") == "true" {
		link, err := s.Run(r.Context(), caseID)
		if err != nil {
			config.ErrorStatus("submission failed", http.StatusBadGateway, w, err)
			return
		}
		b, _ := json.Marshal(map[string]string{"photosFolderLink": link, "status": models.StatusAudit})
		w.WriteHeader(http.StatusOK)
		w.Write(b)
		return
	}

	if err := s.Queue.Enqueue(jobs.Job{ID: attemptID, CaseID: caseID}); err != nil {
		config.ErrorStatus("failed to queue submission", http.StatusServiceUnavailable, w, err)
		return
	}
	b, _ := json.Marshal(map[string]string{"queued": "true", "attemptId": attemptID})
	w.WriteHeader(http.StatusAccepted)
	w.Write(b)
}

// Process is the job queue handler for queued submissions.
func (s *Submission) Process(ctx context.Context, job jobs.Job) error {
	_, err := s.Run(ctx, job.CaseID)
	if err == workflow.ErrStaleRevision {
		// the next attempt reloads fresh state
		return err
	}
	return err
}

// Run executes the full pipeline for one case. Each step is independently
// retryable; re-running after a partial failure skips photos that are already
// remote.
func (s *Submission) Run(ctx context.Context, caseID string) (string, error) {
	cID, err := primitive.ObjectIDFromHex(caseID)
	if err != nil {
		return "", err
	}

	qctx, cancel := api.WithQueryTimeout(ctx)
	caseRecord, err := s.DB.FindOne(qctx, bson.M{"_id": cID})
	cancel()
	if err != nil {
		return "", err
	}

	// A retry of an already-finished submission is a no-op.
	if caseRecord.Status == models.StatusAudit && caseRecord.PhotosFolderLink != "" && len(caseRecord.PhotosToRedo) == 0 {
		return caseRecord.PhotosFolderLink, nil
	}

	result := policy.Evaluate(*caseRecord, policy.SelectPolicy(*caseRecord))
	if !result.Ready {
		return "", &workflow.IncompleteRequirementsError{Missing: result.Missing}
	}

	folder := s.purgeRedoEvidence(ctx, caseRecord)

	// Upload every photo that is not yet remote. Already-remote URIs are
	// skipped, which makes a rerun after partial failure idempotent.
	for category, photos := range folder {
		for idx, photo := range photos {
			if strings.HasPrefix(photo.URI, "http") {
				continue
			}
			link, err := storage.UploadWithRetry(ctx, s.Storage, photo.URI,
				fmt.Sprintf("cases/%s/%s", caseID, category), photo.ID)
			if err != nil {
				return "", err
			}
			photos[idx].URI = link
		}
		folder[category] = photos
	}

	sections, err := s.fetchSections(ctx, folder)
	if err != nil {
		return "", err
	}
	caseRecord.PhotosFolder = folder
	pdfBytes, err := pdfreport.Build(*caseRecord, sections)
	if err != nil {
		return "", err
	}

	// The public id carries a timestamp so an in-flight previous submission
	// can never collide with this one.
	reportID := fmt.Sprintf("%s-%d", caseID, time.Now().UnixNano())
	link, err := storage.UploadWithRetry(ctx, s.Storage, pdfBytes, "reports", reportID)
	if err != nil {
		return "", err
	}

	// The stale report is removed before the new link is persisted.
	if caseRecord.PhotosFolderLink != "" {
		s.destroyByURL(ctx, caseRecord.PhotosFolderLink)
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	err = casUpdate(ctx, s.DB, caseRecord, bson.M{
		"$set": bson.M{
			"photosFolder":     folder,
			"photosFolderLink": link,
			"status":           models.StatusAudit,
			"completedAt":      now,
		},
		"$unset": bson.M{"photosToRedo": ""},
	})
	if err != nil {
		return "", err
	}

	BroadcastCaseUpdate(caseID, models.StatusAudit, caseRecord.AssignedTo)
	return link, nil
}

// purgeRedoEvidence drops the pre-rejection photos of every redo category and
// deletes their remote objects. Deletion failures are logged, never fatal;
// forward progress of the resubmission wins.
func (s *Submission) purgeRedoEvidence(ctx context.Context, caseRecord *models.Case) map[string][]models.Photo {
	folder := make(map[string][]models.Photo, len(caseRecord.PhotosFolder))
	for category, photos := range caseRecord.PhotosFolder {
		folder[category] = photos
	}

	for _, category := range caseRecord.PhotosToRedo {
		kept := folder[category][:0:0]
		for _, photo := range folder[category] {
			if strings.HasPrefix(photo.URI, "http") {
				// remote photo from before the redo request
				s.destroyByURL(ctx, photo.URI)
				continue
			}
			kept = append(kept, photo)
		}
		folder[category] = kept
	}
	return folder
}

func (s *Submission) destroyByURL(ctx context.Context, rawURL string) {
	publicID, ok := storage.PublicIDFromURL(rawURL)
	if !ok {
		zap.S().Warnw("could not derive public id for deletion", "url", rawURL)
		return
	}
	if err := s.Storage.Destroy(ctx, publicID); err != nil {
		zap.S().Warnw("best-effort object deletion failed", "publicID", publicID, "error", err)
	}
}

// fetchSections downloads every photo for the report, ordered by category so
// the document layout is stable.
func (s *Submission) fetchSections(ctx context.Context, folder map[string][]models.Photo) ([]pdfreport.CategorySection, error) {
	categories := make([]string, 0, len(folder))
	for category, photos := range folder {
		if len(photos) > 0 {
			categories = append(categories, category)
		}
	}
	sort.Strings(categories)

	var sections []pdfreport.CategorySection
	for _, category := range categories {
		section := pdfreport.CategorySection{Category: category}
		for _, photo := range folder[category] {
			data, err := s.fetchImage(ctx, photo.URI)
			if err != nil {
				return nil, &workflow.TransientRemoteError{Op: "fetch photo for report", Err: err}
			}
			section.Images = append(section.Images, pdfreport.Image{
				Photo:  photo,
				Data:   data,
				Format: pdfreport.DetectFormat(data),
			})
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func (s *Submission) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
