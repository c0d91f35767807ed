package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Case lifecycle statuses. A case holds exactly one status at a time; the
// allowed moves between them live in the workflow package.
const (
	StatusFired     = "fired"
	StatusAssigned  = "assigned"
	StatusAudit     = "audit"
	StatusReverted  = "reverted"
	StatusCompleted = "completed"
	StatusClosed    = "closed"
)

// Case holds the structure for the cases collection in mongo
type Case struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	RefNo         string             `json:"refNo" bson:"refNo"`
	Client        string             `json:"client" bson:"client"`
	Company       string             `json:"company" bson:"company"`
	CheckType     string             `json:"checkType" bson:"checkType"`
	ChkType       string             `json:"chkType" bson:"chkType"`
	CESType       string             `json:"cesType" bson:"cesType"`
	CandidateName string             `json:"candidateName" bson:"candidateName"`
	Address       string             `json:"address" bson:"address"`
	City          string             `json:"city" bson:"city"`
	State         string             `json:"state" bson:"state"`
	Pincode       string             `json:"pincode" bson:"pincode"`
	ContactNumber string             `json:"contactNumber" bson:"contactNumber"`

	Status        string             `json:"status" bson:"status"`
	DateInitiated primitive.DateTime `json:"dateInitiated" bson:"dateInitiated"`
	AssignedAt    primitive.DateTime `json:"assignedAt,omitempty" bson:"assignedAt,omitempty"`
	CompletedAt   primitive.DateTime `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	FinalizedAt   primitive.DateTime `json:"finalizedAt,omitempty" bson:"finalizedAt,omitempty"`

	AssignedTo   string `json:"assignedTo,omitempty" bson:"assignedTo,omitempty"`
	AssigneeName string `json:"assigneeName,omitempty" bson:"assigneeName,omitempty"`
	AssigneeRole string `json:"assigneeRole,omitempty" bson:"assigneeRole,omitempty"`

	PhotosFolder     map[string][]Photo `json:"photosFolder,omitempty" bson:"photosFolder,omitempty"`
	PhotosFolderLink string             `json:"photosFolderLink,omitempty" bson:"photosFolderLink,omitempty"`

	FilledForm    *FilledForm `json:"filledForm,omitempty" bson:"filledForm,omitempty"`
	FormCompleted bool        `json:"formCompleted" bson:"formCompleted"`

	AuditFeedback   string   `json:"auditFeedback,omitempty" bson:"auditFeedback,omitempty"`
	PhotosToRedo    []string `json:"photosToRedo,omitempty" bson:"photosToRedo,omitempty"`
	PendingFinalize bool     `json:"pendingFinalize,omitempty" bson:"pendingFinalize,omitempty"`

	FinalizedBy string `json:"finalizedBy,omitempty" bson:"finalizedBy,omitempty"`
	ClosedBy    string `json:"closedBy,omitempty" bson:"closedBy,omitempty"`
	Comments    string `json:"comments,omitempty" bson:"comments,omitempty"`

	// Rev is bumped on every mutation; writers filter on it so concurrent
	// updates fail fast instead of overwriting each other.
	Rev int64 `json:"rev" bson:"rev"`
}

// Photo is a single capture event inside a case's photo folder
type Photo struct {
	ID        string             `json:"id" bson:"id"`
	URI       string             `json:"uri" bson:"uri"`
	Timestamp primitive.DateTime `json:"timestamp" bson:"timestamp"`
	Geotag    *Geotag            `json:"geotag,omitempty" bson:"geotag,omitempty"`
	Address   string             `json:"address" bson:"address"`
}

// Geotag holds the capture coordinates when GPS was available
type Geotag struct {
	Latitude  float64 `json:"lat" bson:"lat"`
	Longitude float64 `json:"lng" bson:"lng"`
}

// FilledForm is the member-filled PDF form artifact attached to a case
type FilledForm struct {
	URL       string             `json:"url" bson:"url"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}
