package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Member roles and statuses
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleDev    = "dev"

	MemberActive = "active"
	MemberBanned = "banned"
)

// Member holds the structure for the users collection in mongo. Passwords are
// stored as bcrypt hashes only, never mirrored in plaintext.
type Member struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name       string             `json:"name" bson:"name"`
	Email      string             `json:"email" bson:"email"`
	Password   string             `json:"-" bson:"password"`
	Role       string             `json:"role" bson:"role"`
	UniqueID   string             `json:"uniqueId" bson:"uniqueId"`
	Status     string             `json:"status" bson:"status"`
	IsVerified bool               `json:"isVerified" bson:"isVerified"`
	City       string             `json:"city,omitempty" bson:"city,omitempty"`
	Pincode    string             `json:"pincode,omitempty" bson:"pincode,omitempty"`
	BloodGroup string             `json:"bloodGroup,omitempty" bson:"bloodGroup,omitempty"`
	PhotoURL   string             `json:"photoURL,omitempty" bson:"photoURL,omitempty"`
	CreatedAt  primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt  primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}
