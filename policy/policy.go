// Package policy selects and evaluates per-client photo checklists. The rules
// are plain data so that the business mapping from client/company to required
// categories can be reviewed and changed without touching workflow code.
package policy

import (
	"fmt"
	"strings"

	"github.com/fieldverify/field-verify-api/models"
)

// Requirement is one required photo category with its count bounds. Min of 0
// means fall back to Max.
type Requirement struct {
	Category string `json:"category"`
	Min      int    `json:"min"`
	Max      int    `json:"max"`
}

// Policy is the full checklist applied to a case before submission.
type Policy struct {
	Name         string        `json:"name"`
	Requirements []Requirement `json:"requirements"`
	RequiresForm bool          `json:"requiresForm"`
}

// rule binds a policy to the cases it governs. Empty match fields match any
// value; the first matching rule wins.
type rule struct {
	client  string
	company string
	cesType string
	policy  Policy
}

// Default is the checklist applied when no client-specific rule matches.
var Default = Policy{
	Name: "standard",
	Requirements: []Requirement{
		{Category: "selfie", Min: 1},
		{Category: "house", Min: 2},
		{Category: "street", Min: 2},
		{Category: "nameplate", Min: 1},
		{Category: "document", Min: 1},
	},
	RequiresForm: true,
}

var table = []rule{
	// R A Associates checks need only a landmark sweep alongside the form.
	{client: "R A Associates", policy: Policy{
		Name:         "ra-associates",
		Requirements: []Requirement{{Category: "landmark", Min: 6}},
		RequiresForm: true,
	}},
	// CES "No" cases are photos-only, no filled form expected.
	{cesType: "No", policy: Policy{
		Name: "ces-photos-only",
		Requirements: []Requirement{
			{Category: "selfie", Min: 1},
			{Category: "house", Min: 2},
			{Category: "street", Min: 2},
			{Category: "nameplate", Min: 1},
		},
		RequiresForm: false,
	}},
}

// SelectPolicy resolves the checklist that governs the given case.
func SelectPolicy(c models.Case) Policy {
	for _, r := range table {
		if r.client != "" && !strings.EqualFold(strings.TrimSpace(c.Client), r.client) {
			continue
		}
		if r.company != "" && !strings.EqualFold(strings.TrimSpace(c.Company), r.company) {
			continue
		}
		if r.cesType != "" && !strings.EqualFold(strings.TrimSpace(c.CESType), r.cesType) {
			continue
		}
		return r.policy
	}
	return Default
}

// CategoryStatus is the evaluated state of one required category.
type CategoryStatus struct {
	Category string `json:"category"`
	Have     int    `json:"have"`
	Need     int    `json:"need"`
}

// Result reports whether a case is ready for audit and what is still missing.
type Result struct {
	Ready        bool             `json:"ready"`
	RequiresForm bool             `json:"requiresForm"`
	Categories   []CategoryStatus `json:"categories"`
	Missing      []string         `json:"missing,omitempty"`
}

// Evaluate checks the case's photo folder against the policy. For categories
// listed in photosToRedo only local, not-yet-uploaded photos count: remote
// URIs are evidence from the rejected submission, which the resubmission
// purges, while a local URI is a fresh recapture.
func Evaluate(c models.Case, p Policy) Result {
	redo := make(map[string]bool, len(c.PhotosToRedo))
	for _, cat := range c.PhotosToRedo {
		redo[cat] = true
	}

	res := Result{Ready: true, RequiresForm: p.RequiresForm}
	for _, req := range p.Requirements {
		need := req.Min
		if need == 0 {
			need = req.Max
		}
		have := len(c.PhotosFolder[req.Category])
		if redo[req.Category] {
			have = 0
			for _, photo := range c.PhotosFolder[req.Category] {
				if !strings.HasPrefix(photo.URI, "http") {
					have++
				}
			}
		}
		res.Categories = append(res.Categories, CategoryStatus{Category: req.Category, Have: have, Need: need})
		if have < need {
			res.Ready = false
			res.Missing = append(res.Missing, fmt.Sprintf("%s (%d of %d)", req.Category, have, need))
		}
	}
	if p.RequiresForm && !c.FormCompleted {
		res.Ready = false
		res.Missing = append(res.Missing, "filled form")
	}
	return res
}
