package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldverify/field-verify-api/api/handlers"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/databases/mocks"
	"github.com/fieldverify/field-verify-api/models"
)

func assignBody(t *testing.T, ids []string, name string) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{"caseIds": ids, "memberName": name})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(b)
}

func memberDecode(id, name string) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		arg := args.Get(0).(**models.Member)
		oid, _ := primitive.ObjectIDFromHex(id)
		(*arg).ID = oid
		(*arg).Name = name
		(*arg).Role = models.RoleMember
	}
}

func TestAssignment_AssignCasesHandlerNoCases(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/cases/assign", assignBody(t, nil, "Rahul"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")

	a := handlers.Assignment{}
	rr := httptest.NewRecorder()
	http.HandlerFunc(a.AssignCasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "assignment blocked")
}

func TestAssignment_AssignCasesHandlerUnknownMember(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/cases/assign", assignBody(t, []string{"608cafe595eb9dc05379b7f4"}, "Nobody"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	var memberConn databases.CollectionHelper
	var memberResult databases.SingleResultHelper

	db = &MockDatabaseHelper{}
	memberConn = &mocks.CollectionHelper{}
	memberResult = &mocks.SingleResultHelper{}

	memberResult.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(errors.New("mongo: no documents in result"))
	memberConn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(memberResult)
	db.(*MockDatabaseHelper).On("Collection", "users").Return(memberConn)

	a := handlers.Assignment{MDB: databases.NewMemberDatabase(db)}
	rr := httptest.NewRecorder()
	http.HandlerFunc(a.AssignCasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "does not resolve to a known member")
}

func TestAssignment_AssignCasesHandlerSuccess(t *testing.T) {
	caseID := "608cafe595eb9dc05379b7f4"
	req, err := http.NewRequest("POST", "/api/v1/cases/assign", assignBody(t, []string{caseID}, "Rahul"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	var caseConn databases.CollectionHelper
	var memberConn databases.CollectionHelper
	var memberResult databases.SingleResultHelper
	var updateResult databases.UpdateResultHelper

	db = &MockDatabaseHelper{}
	caseConn = &mocks.CollectionHelper{}
	memberConn = &mocks.CollectionHelper{}
	memberResult = &mocks.SingleResultHelper{}
	updateResult = &mocks.UpdateResultHelper{}

	memberResult.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(memberDecode("5fc51f58c72ff10004dca381", "Rahul"))
	memberConn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(memberResult)

	updateResult.(*mocks.UpdateResultHelper).On("MatchedCount").Return(int64(1))
	caseConn.(*mocks.CollectionHelper).On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(updateResult, nil)

	db.(*MockDatabaseHelper).On("Collection", "cases").Return(caseConn)
	db.(*MockDatabaseHelper).On("Collection", "users").Return(memberConn)

	a := handlers.Assignment{
		DB:  databases.NewCaseDatabase(db),
		MDB: databases.NewMemberDatabase(db),
	}
	rr := httptest.NewRecorder()
	http.HandlerFunc(a.AssignCasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Assigned []string `json:"assigned"`
		Failed   []string `json:"failed"`
		Warning  string   `json:"warning"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{caseID}, resp.Assigned)
	assert.Empty(t, resp.Failed)
	assert.Empty(t, resp.Warning)
}

func TestAssignment_AssignCasesHandlerReassignsReverted(t *testing.T) {
	caseID := "608cafe595eb9dc05379b7f4"
	req, err := http.NewRequest("POST", "/api/v1/cases/assign", assignBody(t, []string{caseID}, "Rahul"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	var caseConn databases.CollectionHelper
	var memberConn databases.CollectionHelper
	var revertedConn databases.CollectionHelper
	var memberResult databases.SingleResultHelper
	var revertedResult databases.SingleResultHelper
	var updateResult databases.UpdateResultHelper
	var insertResult databases.InsertOneResultHelper

	db = &MockDatabaseHelper{}
	caseConn = &mocks.CollectionHelper{}
	memberConn = &mocks.CollectionHelper{}
	revertedConn = &mocks.CollectionHelper{}
	memberResult = &mocks.SingleResultHelper{}
	revertedResult = &mocks.SingleResultHelper{}
	updateResult = &mocks.UpdateResultHelper{}
	insertResult = &mocks.InsertOneResultHelper{}

	memberResult.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(memberDecode("5fc51f58c72ff10004dca381", "Rahul"))
	memberConn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(memberResult)

	// not in the active collection
	updateResult.(*mocks.UpdateResultHelper).On("MatchedCount").Return(int64(0))
	caseConn.(*mocks.CollectionHelper).On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(updateResult, nil)

	var inserted models.Case
	caseConn.(*mocks.CollectionHelper).On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil).Run(func(args mock.Arguments) {
		inserted = args.Get(1).(models.Case)
	})

	oldID, _ := primitive.ObjectIDFromHex(caseID)
	revertedResult.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.RevertedCase)
		(*arg).ID = primitive.NewObjectID()
		(*arg).Case = models.Case{
			ID:     oldID,
			RefNo:  "VRF-1",
			Status: models.StatusReverted,
			Rev:    4,
			PhotosFolder: map[string][]models.Photo{
				"selfie": {{ID: "p1", URI: "https://res.example.com/p1.jpg"}},
			},
			AuditFeedback: "stale feedback",
		}
		(*arg).RevertReason = "wrong address"
	})
	revertedConn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(revertedResult)
	revertedConn.(*mocks.CollectionHelper).On("DeleteOne", mock.Anything, mock.Anything).Return(nil)

	db.(*MockDatabaseHelper).On("Collection", "cases").Return(caseConn)
	db.(*MockDatabaseHelper).On("Collection", "users").Return(memberConn)
	db.(*MockDatabaseHelper).On("Collection", "revertedCases").Return(revertedConn)

	a := handlers.Assignment{
		DB:  databases.NewCaseDatabase(db),
		RDB: databases.NewRevertedCaseDatabase(db),
		MDB: databases.NewMemberDatabase(db),
	}
	rr := httptest.NewRecorder()
	http.HandlerFunc(a.AssignCasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"assigned":["`+caseID+`"]`)

	// fresh case drops old evidence and restarts the revision counter
	assert.NotEqual(t, oldID, inserted.ID)
	assert.Equal(t, models.StatusAssigned, inserted.Status)
	assert.Equal(t, "Rahul", inserted.AssigneeName)
	assert.Nil(t, inserted.PhotosFolder)
	assert.Empty(t, inserted.AuditFeedback)
	assert.Equal(t, int64(1), inserted.Rev)
}

func TestAssignment_AssignCasesHandlerPartialFailure(t *testing.T) {
	goodID := "608cafe595eb9dc05379b7f4"
	req, err := http.NewRequest("POST", "/api/v1/cases/assign", assignBody(t, []string{goodID, "not-an-id"}, "Rahul"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	var caseConn databases.CollectionHelper
	var memberConn databases.CollectionHelper
	var memberResult databases.SingleResultHelper
	var updateResult databases.UpdateResultHelper

	db = &MockDatabaseHelper{}
	caseConn = &mocks.CollectionHelper{}
	memberConn = &mocks.CollectionHelper{}
	memberResult = &mocks.SingleResultHelper{}
	updateResult = &mocks.UpdateResultHelper{}

	memberResult.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil).Run(memberDecode("5fc51f58c72ff10004dca381", "Rahul"))
	memberConn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(memberResult)

	updateResult.(*mocks.UpdateResultHelper).On("MatchedCount").Return(int64(1))
	caseConn.(*mocks.CollectionHelper).On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(updateResult, nil)

	db.(*MockDatabaseHelper).On("Collection", "cases").Return(caseConn)
	db.(*MockDatabaseHelper).On("Collection", "users").Return(memberConn)

	a := handlers.Assignment{
		DB:  databases.NewCaseDatabase(db),
		MDB: databases.NewMemberDatabase(db),
	}
	rr := httptest.NewRecorder()
	http.HandlerFunc(a.AssignCasesHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Assigned []string `json:"assigned"`
		Failed   []string `json:"failed"`
		Warning  string   `json:"warning"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{goodID}, resp.Assigned)
	assert.Equal(t, []string{"not-an-id"}, resp.Failed)
	assert.NotEmpty(t, resp.Warning)
}
