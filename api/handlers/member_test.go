package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fieldverify/field-verify-api/api/handlers"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/databases/mocks"
	"github.com/fieldverify/field-verify-api/models"
)

func createMemberRequest(t *testing.T, body handlers.CreateMemberRequest) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("POST", "/api/v1/member/create-member", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestMember_CreateMemberHandlerSuccess(t *testing.T) {
	memberConn := &mocks.CollectionHelper{}
	insertResult := &mocks.InsertOneResultHelper{}

	// no duplicate email, and the first badge number draw is free
	memberConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)

	var inserted models.Member
	memberConn.On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil).Run(func(args mock.Arguments) {
		inserted = args.Get(1).(models.Member)
	})

	db := &MockDatabaseHelper{}
	db.On("Collection", "users").Return(memberConn)

	m := &handlers.Member{DB: databases.NewMemberDatabase(db)}
	rr := httptest.NewRecorder()
	http.HandlerFunc(m.CreateMemberHandler).ServeHTTP(rr, createMemberRequest(t, handlers.CreateMemberRequest{
		Name:     "Rahul Verma",
		Email:    "rahul.verma@fieldverify.in",
		Password: "s3cret-pass",
		City:     "Pune",
		Pincode:  "411001",
	}))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "Rahul Verma", inserted.Name)
	assert.Equal(t, models.RoleMember, inserted.Role)
	assert.Equal(t, models.MemberActive, inserted.Status)
	assert.Len(t, inserted.UniqueID, 4)
	assert.NotEqual(t, "s3cret-pass", inserted.Password)
	assert.Contains(t, rr.Body.String(), `"name":"Rahul Verma"`)
}

func TestMember_CreateMemberHandlerMissingPassword(t *testing.T) {
	m := &handlers.Member{}
	rr := httptest.NewRecorder()
	http.HandlerFunc(m.CreateMemberHandler).ServeHTTP(rr, createMemberRequest(t, handlers.CreateMemberRequest{
		Name:  "Rahul Verma",
		Email: "rahul.verma@fieldverify.in",
	}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "name and password are required")
}

func TestMember_CreateMemberHandlerInvalidEmail(t *testing.T) {
	m := &handlers.Member{}
	rr := httptest.NewRecorder()
	http.HandlerFunc(m.CreateMemberHandler).ServeHTTP(rr, createMemberRequest(t, handlers.CreateMemberRequest{
		Name:     "Rahul Verma",
		Email:    "not-an-email",
		Password: "s3cret-pass",
	}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "a valid email address is required")
}

func TestMember_CreateMemberHandlerUnknownRole(t *testing.T) {
	m := &handlers.Member{}
	rr := httptest.NewRecorder()
	http.HandlerFunc(m.CreateMemberHandler).ServeHTTP(rr, createMemberRequest(t, handlers.CreateMemberRequest{
		Name:     "Rahul Verma",
		Email:    "rahul.verma@fieldverify.in",
		Password: "s3cret-pass",
		Role:     "superuser",
	}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `unknown role \"superuser\"`)
}

func TestMember_CreateMemberHandlerDuplicateEmail(t *testing.T) {
	memberConn := &mocks.CollectionHelper{}
	memberConn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(1), nil)

	db := &MockDatabaseHelper{}
	db.On("Collection", "users").Return(memberConn)

	m := &handlers.Member{DB: databases.NewMemberDatabase(db)}
	rr := httptest.NewRecorder()
	http.HandlerFunc(m.CreateMemberHandler).ServeHTTP(rr, createMemberRequest(t, handlers.CreateMemberRequest{
		Name:     "Rahul Verma",
		Email:    "rahul.verma@fieldverify.in",
		Password: "s3cret-pass",
	}))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "member already exists")
}

func TestMember_BanMemberHandler(t *testing.T) {
	memberConn := &mocks.CollectionHelper{}
	updateResult := &mocks.UpdateResultHelper{}
	updateResult.On("MatchedCount").Return(int64(1))
	memberConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(updateResult, nil)

	db := &MockDatabaseHelper{}
	db.On("Collection", "users").Return(memberConn)

	req, err := http.NewRequest("POST", "/api/v1/member/5fc51f58c72ff10004dca381/ban", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")
	req = mux.SetURLVars(req, map[string]string{"member_id": "5fc51f58c72ff10004dca381"})

	m := &handlers.Member{DB: databases.NewMemberDatabase(db)}
	rr := httptest.NewRecorder()
	http.HandlerFunc(m.BanMemberHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"status":"banned"}`, rr.Body.String())
}

func TestMember_UnbanMemberHandlerNotFound(t *testing.T) {
	memberConn := &mocks.CollectionHelper{}
	updateResult := &mocks.UpdateResultHelper{}
	updateResult.On("MatchedCount").Return(int64(0))
	memberConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(updateResult, nil)

	db := &MockDatabaseHelper{}
	db.On("Collection", "users").Return(memberConn)

	req, err := http.NewRequest("POST", "/api/v1/member/5fc51f58c72ff10004dca381/unban", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")
	req = mux.SetURLVars(req, map[string]string{"member_id": "5fc51f58c72ff10004dca381"})

	m := &handlers.Member{DB: databases.NewMemberDatabase(db)}
	rr := httptest.NewRecorder()
	http.HandlerFunc(m.UnbanMemberHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "member not found")
}

func TestMember_VerifyMemberHandler(t *testing.T) {
	memberConn := &mocks.CollectionHelper{}
	updateResult := &mocks.UpdateResultHelper{}
	updateResult.On("MatchedCount").Return(int64(1))
	memberConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(updateResult, nil)

	db := &MockDatabaseHelper{}
	db.On("Collection", "users").Return(memberConn)

	req, err := http.NewRequest("POST", "/api/v1/member/5fc51f58c72ff10004dca381/verify", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer abc123")
	req = mux.SetURLVars(req, map[string]string{"member_id": "5fc51f58c72ff10004dca381"})

	m := &handlers.Member{DB: databases.NewMemberDatabase(db)}
	rr := httptest.NewRecorder()
	http.HandlerFunc(m.VerifyMemberHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"isVerified":true}`, rr.Body.String())
}
