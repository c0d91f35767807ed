package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fieldverify/field-verify-api/api"
	"github.com/fieldverify/field-verify-api/api/scheduler"
	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/jobs"
	"github.com/fieldverify/field-verify-api/mailer"
	"github.com/fieldverify/field-verify-api/models"
	"github.com/fieldverify/field-verify-api/storage"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router     *mux.Router
	Config     config.Config
	dbHelper   databases.DatabaseHelper
	relay      *mailer.Relay
	store      storage.ObjectStorage
	queue      *jobs.Queue
	submission *Submission
	scheduler  *scheduler.Scheduler
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewMemberDatabase(a.dbHelper), Secret: a.Config.JWTSecret}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	caseDB := databases.NewCaseDatabase(a.dbHelper)
	memberDB := databases.NewMemberDatabase(a.dbHelper)
	revertedDB := databases.NewRevertedCaseDatabase(a.dbHelper)

	c := Case{DB: caseDB}
	ing := Ingestion{DB: caseDB, MDB: memberDB}
	assign := Assignment{DB: caseDB, RDB: revertedDB, MDB: memberDB}
	capture := Capture{DB: caseDB}
	sub := a.submission
	audit := &Audit{DB: caseDB, Relay: a.relay, Recipient: a.Config.ReportRecipient}
	revert := &Revert{DB: caseDB, RDB: revertedDB}
	member := &Member{DB: memberDB}
	mailH := &Mail{Relay: a.relay}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(60 * time.Second))

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/member/create-member", http.HandlerFunc(member.CreateMemberHandler)).Methods("POST")
	apiCreate.Handle("/member/{member_id}", api.Middleware(http.HandlerFunc(member.MemberByIDHandler))).Methods("GET")
	apiCreate.Handle("/member/{member_id}/ban", api.Middleware(http.HandlerFunc(member.BanMemberHandler))).Methods("POST")
	apiCreate.Handle("/member/{member_id}/unban", api.Middleware(http.HandlerFunc(member.UnbanMemberHandler))).Methods("POST")
	apiCreate.Handle("/member/{member_id}/verify", api.Middleware(http.HandlerFunc(member.VerifyMemberHandler))).Methods("POST")
	apiCreate.Handle("/members", api.Middleware(http.HandlerFunc(member.MembersHandler))).Methods("GET")

	apiCreate.Handle("/cases/import", api.Middleware(http.HandlerFunc(ing.ImportCasesHandler))).Methods("POST")
	apiCreate.Handle("/cases/assign", api.Middleware(http.HandlerFunc(assign.AssignCasesHandler))).Methods("POST")
	apiCreate.Handle("/cases/assignee/{member_id}", api.Middleware(http.HandlerFunc(c.CasesByAssigneeHandler))).Methods("GET")
	apiCreate.Handle("/cases/status/{status}", api.Middleware(http.HandlerFunc(c.CasesByStatusHandler))).Methods("GET")
	apiCreate.Handle("/cases/stats", api.Middleware(http.HandlerFunc(c.CaseStatsHandler))).Methods("GET")
	apiCreate.Handle("/cases/reverted", api.Middleware(http.HandlerFunc(revert.RevertedCasesHandler))).Methods("GET")

	apiCreate.Handle("/case/{case_id}", api.Middleware(http.HandlerFunc(c.CaseByIDHandler))).Methods("GET")
	apiCreate.Handle("/case/{case_id}/photos", api.Middleware(http.HandlerFunc(capture.AddPhotoHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/photos/{category}/{photo_id}", api.Middleware(http.HandlerFunc(capture.DeletePhotoHandler))).Methods("DELETE")
	apiCreate.Handle("/case/{case_id}/checklist", api.Middleware(http.HandlerFunc(capture.ChecklistHandler))).Methods("GET")
	apiCreate.Handle("/case/{case_id}/form", api.Middleware(http.HandlerFunc(capture.UpdateFormHandler))).Methods("PUT")
	apiCreate.Handle("/case/{case_id}/submit", api.Middleware(http.HandlerFunc(sub.SubmitCaseHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/approve", api.Middleware(http.HandlerFunc(audit.ApproveHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/reject", api.Middleware(http.HandlerFunc(audit.RejectHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/rectify", api.Middleware(http.HandlerFunc(audit.RectifyHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/close", api.Middleware(http.HandlerFunc(audit.CloseHandler))).Methods("POST")
	apiCreate.Handle("/case/{case_id}/revert", api.Middleware(http.HandlerFunc(revert.RevertCaseHandler))).Methods("POST")

	apiCreate.Handle("/send-email", api.Middleware(http.HandlerFunc(mailH.SendEmailHandler))).Methods("POST")
	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	r.HandleFunc("/ws/cases", HandleCasesWebSocket)

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("field-verify-api has connected to the database")

	store, err := storage.New(&a.Config)
	if err != nil {
		zap.S().With(err).Error("failed to create object storage client")
		return err
	}
	a.store = store

	a.relay = mailer.New(a.Config.SendgridAPIKey, a.Config.MailFrom)

	caseDB := databases.NewCaseDatabase(a.dbHelper)
	a.submission = &Submission{
		DB:      caseDB,
		Storage: a.store,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
	a.queue = jobs.NewQueue("submissions", a.submission.Process, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 64,
		MaxRetries: 3,
		RetryDelay: 30 * time.Second,
	})
	a.submission.Queue = a.queue
	a.queue.Start(context.Background())

	lockDB := databases.NewSchedulerLockDatabase(a.dbHelper)
	a.scheduler = scheduler.NewScheduler(caseDB, lockDB, a.relay, a.Config.ReportRecipient)
	a.scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
