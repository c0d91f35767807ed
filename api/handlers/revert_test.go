package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldverify/field-verify-api/api/handlers"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/databases/mocks"
	"github.com/fieldverify/field-verify-api/models"
)

func revertRequest(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("POST", "/api/v1/case/608cafe595eb9dc05379b7f4/revert", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")
	return mux.SetURLVars(req, map[string]string{"case_id": "608cafe595eb9dc05379b7f4"})
}

func revertFixture(t *testing.T, status string) (*MockDatabaseHelper, *mocks.CollectionHelper, *mocks.CollectionHelper) {
	t.Helper()

	caseConn := &mocks.CollectionHelper{}
	revertedConn := &mocks.CollectionHelper{}
	singleResult := &mocks.SingleResultHelper{}

	singleResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Case)
		oid, _ := primitive.ObjectIDFromHex("608cafe595eb9dc05379b7f4")
		(*arg).ID = oid
		(*arg).RefNo = "VRF-1001"
		(*arg).Status = status
		(*arg).Rev = 2
	})
	caseConn.On("FindOne", mock.Anything, mock.Anything).Return(singleResult)

	db := &MockDatabaseHelper{}
	db.On("Collection", "cases").Return(caseConn)
	db.On("Collection", "revertedCases").Return(revertedConn)
	return db, caseConn, revertedConn
}

func TestRevert_RevertCaseHandlerMissingReason(t *testing.T) {
	v := &handlers.Revert{}
	rr := httptest.NewRecorder()
	http.HandlerFunc(v.RevertCaseHandler).ServeHTTP(rr, revertRequest(t, handlers.RevertRequest{RevertedBy: "admin"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "a revert reason is required")
}

func TestRevert_RevertCaseHandlerWrongStatus(t *testing.T) {
	db, _, _ := revertFixture(t, models.StatusAudit)

	v := &handlers.Revert{
		DB:  databases.NewCaseDatabase(db),
		RDB: databases.NewRevertedCaseDatabase(db),
	}
	rr := httptest.NewRecorder()
	http.HandlerFunc(v.RevertCaseHandler).ServeHTTP(rr, revertRequest(t, handlers.RevertRequest{
		RevertedBy:   "admin",
		RevertReason: "client withdrew the case",
	}))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "cannot revert a audit case")
}

func TestRevert_RevertCaseHandlerSuccess(t *testing.T) {
	db, caseConn, revertedConn := revertFixture(t, models.StatusAssigned)

	insertResult := &mocks.InsertOneResultHelper{}
	var archived models.RevertedCase
	revertedConn.On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil).Run(func(args mock.Arguments) {
		archived = args.Get(1).(models.RevertedCase)
	})
	caseConn.On("DeleteOne", mock.Anything, mock.Anything).Return(nil)

	v := &handlers.Revert{
		DB:  databases.NewCaseDatabase(db),
		RDB: databases.NewRevertedCaseDatabase(db),
	}
	rr := httptest.NewRecorder()
	http.HandlerFunc(v.RevertCaseHandler).ServeHTTP(rr, revertRequest(t, handlers.RevertRequest{
		RevertedBy:   "admin",
		RevertReason: "client withdrew the case",
	}))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusReverted, resp["status"])
	assert.Equal(t, archived.ID.Hex(), resp["revertedId"])

	assert.Equal(t, "VRF-1001", archived.Case.RefNo)
	assert.Equal(t, models.StatusReverted, archived.Case.Status)
	assert.Equal(t, "client withdrew the case", archived.RevertReason)
}

func TestRevert_RevertCaseHandlerDeleteFailure(t *testing.T) {
	db, caseConn, revertedConn := revertFixture(t, models.StatusFired)

	insertResult := &mocks.InsertOneResultHelper{}
	revertedConn.On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil)
	caseConn.On("DeleteOne", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	v := &handlers.Revert{
		DB:  databases.NewCaseDatabase(db),
		RDB: databases.NewRevertedCaseDatabase(db),
	}
	rr := httptest.NewRecorder()
	http.HandlerFunc(v.RevertCaseHandler).ServeHTTP(rr, revertRequest(t, handlers.RevertRequest{
		RevertedBy:   "admin",
		RevertReason: "duplicate import",
	}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "case archived but not removed from active pool")
}

func TestRevert_RevertedCasesHandler(t *testing.T) {
	revertedConn := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}
	cursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.RevertedCase)
		*arg = append(*arg, models.RevertedCase{
			ID:           primitive.NewObjectID(),
			Case:         models.Case{RefNo: "VRF-1001", Status: models.StatusReverted},
			RevertReason: "client withdrew the case",
		})
	})
	revertedConn.On("Find", mock.Anything, mock.Anything).Return(cursor)

	db := &MockDatabaseHelper{}
	db.On("Collection", "revertedCases").Return(revertedConn)

	req, err := http.NewRequest("GET", "/api/v1/cases/reverted", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")

	v := &handlers.Revert{RDB: databases.NewRevertedCaseDatabase(db)}
	rr := httptest.NewRecorder()
	http.HandlerFunc(v.RevertedCasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"refNo":"VRF-1001"`)
	assert.Contains(t, rr.Body.String(), "client withdrew the case")
}
