package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldverify/field-verify-api/api"
	"github.com/fieldverify/field-verify-api/config"
	"github.com/fieldverify/field-verify-api/databases"
	"github.com/fieldverify/field-verify-api/models"
	"github.com/fieldverify/field-verify-api/workflow"
)

// Member exposes the field team directory.
type Member struct {
	DB databases.MemberDatabase
}

// CreateMemberRequest is the expected post body for registering a member.
type CreateMemberRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	City       string `json:"city"`
	Pincode    string `json:"pincode"`
	BloodGroup string `json:"bloodGroup"`
	PhotoURL   string `json:"photoUrl"`
}

// CreateMemberHandler registers a new member. Passwords are stored as bcrypt
// hashes only and every member gets a short numeric id for badge display.
func (m *Member) CreateMemberHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Name == "" || req.Password == "" {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, &workflow.ValidationError{Field: "name", Reason: "name and password are required"})
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, &workflow.ValidationError{Field: "email", Reason: "a valid email address is required"})
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleAdmin && role != models.RoleDev {
		config.ErrorStatus("invalid request", http.StatusBadRequest, w, &workflow.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", role)})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	count, err := m.DB.CountDocuments(ctx, bson.M{"email": req.Email})
	if err != nil {
		config.ErrorStatus("failed to check for existing member", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("member already exists", http.StatusConflict, w, &workflow.ValidationError{Field: "email", Reason: "a member with this email already exists"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}
	uniqueID, err := m.generateUniqueID(ctx)
	if err != nil {
		config.ErrorStatus("failed to generate member id", http.StatusInternalServerError, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	member := models.Member{
		ID:         primitive.NewObjectID(),
		Name:       req.Name,
		Email:      req.Email,
		Password:   string(hash),
		Role:       role,
		UniqueID:   uniqueID,
		Status:     models.MemberActive,
		City:       req.City,
		Pincode:    req.Pincode,
		BloodGroup: req.BloodGroup,
		PhotoURL:   req.PhotoURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := m.DB.InsertOne(ctx, member); err != nil {
		config.ErrorStatus("failed to create member", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(member)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// MemberByIDHandler returns a single member.
func (m *Member) MemberByIDHandler(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["member_id"]
	mID, err := primitive.ObjectIDFromHex(memberID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	member, err := m.DB.FindOne(ctx, bson.M{"_id": mID})
	if err != nil {
		config.ErrorStatus("failed to get member by ID", http.StatusNotFound, w, err)
		return
	}
	b, err := json.Marshal(member)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MembersHandler lists members with optional role filtering and the shared
// limit/page pagination.
func (m *Member) MembersHandler(w http.ResponseWriter, r *http.Request) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || Limit <= 0 {
		Limit = 50
	}
	Page = getPage(Page, r)
	limit64 := int64(Limit)
	skip64 := int64(Page * Limit)

	filter := bson.M{}
	if role := r.URL.Query().Get("role"); role != "" {
		filter["role"] = role
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	members, err := m.DB.Find(ctx, filter, &options.FindOptions{
		Limit: &limit64,
		Skip:  &skip64,
	})
	if err != nil {
		config.ErrorStatus("failed to get members", http.StatusNotFound, w, err)
		return
	}
	b, err := json.Marshal(members)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// BanMemberHandler flips the member status; banned members cannot
// authenticate.
func (m *Member) BanMemberHandler(w http.ResponseWriter, r *http.Request) {
	m.setStatus(w, r, models.MemberBanned)
}

// UnbanMemberHandler restores a banned member to active.
func (m *Member) UnbanMemberHandler(w http.ResponseWriter, r *http.Request) {
	m.setStatus(w, r, models.MemberActive)
}

// VerifyMemberHandler marks a member verified after their documents check out.
func (m *Member) VerifyMemberHandler(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["member_id"]
	mID, err := primitive.ObjectIDFromHex(memberID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	matched, err := m.DB.UpdateOne(ctx, bson.M{"_id": mID}, bson.M{
		"$set": bson.M{
			"isVerified": true,
			"updatedAt":  primitive.NewDateTimeFromTime(time.Now()),
		},
	})
	if err != nil {
		config.ErrorStatus("failed to update member", http.StatusInternalServerError, w, err)
		return
	}
	if matched == 0 {
		config.ErrorStatus("member not found", http.StatusNotFound, w, fmt.Errorf("no member with id %s", memberID))
		return
	}
	b, _ := json.Marshal(map[string]bool{"isVerified": true})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (m *Member) setStatus(w http.ResponseWriter, r *http.Request, status string) {
	memberID := mux.Vars(r)["member_id"]
	mID, err := primitive.ObjectIDFromHex(memberID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	matched, err := m.DB.UpdateOne(ctx, bson.M{"_id": mID}, bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		},
	})
	if err != nil {
		config.ErrorStatus("failed to update member", http.StatusInternalServerError, w, err)
		return
	}
	if matched == 0 {
		config.ErrorStatus("member not found", http.StatusNotFound, w, fmt.Errorf("no member with id %s", memberID))
		return
	}
	b, _ := json.Marshal(map[string]string{"status": status})
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// generateUniqueID draws 4-digit ids until one is free. The pool is small on
// purpose; the id is a human-facing badge number, not a key.
func (m *Member) generateUniqueID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(9000))
		if err != nil {
			return "", err
		}
		id := strconv.FormatInt(n.Int64()+1000, 10)
		count, err := m.DB.CountDocuments(ctx, bson.M{"uniqueId": id})
		if err != nil {
			return "", err
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not find a free badge number")
}
