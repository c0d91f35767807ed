// Package workflow holds the case lifecycle rules: which status moves are
// legal and the error taxonomy every handler maps onto HTTP responses.
package workflow

import "github.com/fieldverify/field-verify-api/models"

// transitions is the full set of legal status moves. completed and closed are
// terminal except for the explicit admin rectify path back into audit.
var transitions = map[string][]string{
	models.StatusFired:     {models.StatusAssigned, models.StatusReverted},
	models.StatusAssigned:  {models.StatusAudit, models.StatusReverted},
	models.StatusAudit:     {models.StatusCompleted, models.StatusAssigned, models.StatusClosed},
	models.StatusReverted:  {models.StatusAssigned},
	models.StatusCompleted: {models.StatusAudit},
	models.StatusClosed:    {models.StatusAudit},
}

// CanTransition reports whether a case may move from one status to another.
func CanTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
