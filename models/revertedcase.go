package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// RevertedCase holds the structure for the revertedCases collection in mongo.
// A reverted case keeps the original case document plus the revert audit trail;
// the id ceases to exist in the active cases collection.
type RevertedCase struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Case         Case               `json:"case" bson:"case"`
	RevertedBy   string             `json:"revertedBy" bson:"revertedBy"`
	RevertReason string             `json:"revertReason" bson:"revertReason"`
	RevertedAt   primitive.DateTime `json:"revertedAt" bson:"revertedAt"`
}
