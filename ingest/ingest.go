// Package ingest turns raw spreadsheet rows into case documents and builds the
// duplicate filter used to keep re-imports idempotent.
package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fieldverify/field-verify-api/models"
)

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Row is one raw key-value record from an imported sheet.
type Row map[string]interface{}

func (r Row) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprintf("%v", v))
		}
	}
	return ""
}

// AssigneeName returns the optional "fe name" column used by automate mode.
func (r Row) AssigneeName() string {
	return r.str("fe name", "FE Name", "feName")
}

// Normalize maps a raw row into the case shape. The second return is false
// when the row lacks a reference id and must be skipped silently.
func Normalize(r Row, now time.Time) (models.Case, bool) {
	refNo := r.str("Reference ID", "RefNo", "refNo", "matrixRefNo")
	if refNo == "" {
		return models.Case{}, false
	}

	c := models.Case{
		RefNo:         refNo,
		Client:        r.str("Client", "client"),
		Company:       r.str("Company", "company"),
		CheckType:     r.str("Check type", "checkType"),
		ChkType:       r.str("chkType"),
		CESType:       r.str("CES Type", "cesType"),
		CandidateName: r.str("Candidate Name", "candidateName"),
		Address:       r.str("Address", "address"),
		City:          r.str("Location", "city"),
		State:         r.str("State", "state"),
		Pincode:       r.str("Pincode", "pincode"),
		ContactNumber: r.str("Contact Number", "contactNumber"),
		Comments:      r.str("comments", "Comments"),
		Status:        models.StatusFired,
		DateInitiated: primitive.NewDateTimeFromTime(ParseDate(r["Date Initiated"], now)),
		Rev:           1,
	}
	return c, true
}

// ParseDate accepts spreadsheet serial numbers, DD-MM-YYYY strings and any
// other parseable date, falling back to now when nothing fits.
func ParseDate(v interface{}, now time.Time) time.Time {
	switch d := v.(type) {
	case nil:
		return now
	case float64:
		return excelEpoch.Add(time.Duration(d * 24 * float64(time.Hour)))
	case int:
		return excelEpoch.AddDate(0, 0, d)
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return now
		}
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			return excelEpoch.Add(time.Duration(serial * 24 * float64(time.Hour)))
		}
		layouts := []string{
			"02-01-2006",
			"02/01/2006",
			"2006-01-02",
			time.RFC3339,
			"Jan 2, 2006",
			"2 Jan 2006",
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return now
	default:
		return now
	}
}

// DuplicateFilter builds the equality filter on the full identity tuple. A row
// is a duplicate only when every field matches after trimming; there is no
// fuzzy matching.
func DuplicateFilter(c models.Case) bson.M {
	return bson.M{
		"refNo":         c.RefNo,
		"candidateName": c.CandidateName,
		"checkType":     c.CheckType,
		"chkType":       c.ChkType,
		"client":        c.Client,
		"company":       c.Company,
		"address":       c.Address,
		"city":          c.City,
		"state":         c.State,
		"pincode":       c.Pincode,
		"contactNumber": c.ContactNumber,
	}
}
