package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fieldverify/field-verify-api/models"
)

var now = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func TestNormalize(t *testing.T) {
	row := Row{
		"Reference ID":   "VRF-1001",
		"Client":         "Acme Corp",
		"Company":        "Acme Holdings",
		"Check type":     "Address",
		"CES Type":       "Yes",
		"Candidate Name": "Priya Sharma",
		"Address":        "12 MG Road",
		"Location":       "Bengaluru",
		"State":          "Karnataka",
		"Pincode":        "560001",
		"Contact Number": "9876543210",
		"Date Initiated": "15-03-2024",
	}

	c, ok := Normalize(row, now)
	assert.True(t, ok)
	assert.Equal(t, "VRF-1001", c.RefNo)
	assert.Equal(t, "Acme Corp", c.Client)
	assert.Equal(t, "Bengaluru", c.City)
	assert.Equal(t, models.StatusFired, c.Status)
	assert.Equal(t, int64(1), c.Rev)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), c.DateInitiated.Time().UTC())
}

func TestNormalizeAlternateKeyNames(t *testing.T) {
	c, ok := Normalize(Row{"refNo": "VRF-2", "candidateName": "A B", "city": "Pune"}, now)
	assert.True(t, ok)
	assert.Equal(t, "VRF-2", c.RefNo)
	assert.Equal(t, "A B", c.CandidateName)
	assert.Equal(t, "Pune", c.City)
}

func TestNormalizeSkipsRowsWithoutReference(t *testing.T) {
	_, ok := Normalize(Row{"Candidate Name": "No Ref"}, now)
	assert.False(t, ok)

	_, ok = Normalize(Row{"Reference ID": "   "}, now)
	assert.False(t, ok)
}

func TestRowAssigneeName(t *testing.T) {
	assert.Equal(t, "Rahul", Row{"fe name": " Rahul "}.AssigneeName())
	assert.Equal(t, "Rahul", Row{"FE Name": "Rahul"}.AssigneeName())
	assert.Equal(t, "", Row{"Reference ID": "x"}.AssigneeName())
}

func TestParseDate(t *testing.T) {
	// spreadsheet serial, numeric and stringified
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), ParseDate(float64(45366), now))
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), ParseDate("45366", now))
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), ParseDate(45366, now))

	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), ParseDate("01-12-2023", now))
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), ParseDate("01/12/2023", now))
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), ParseDate("2023-12-01", now))
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), ParseDate("Dec 1, 2023", now))

	// garbage falls back to now
	assert.Equal(t, now, ParseDate("not a date", now))
	assert.Equal(t, now, ParseDate(nil, now))
	assert.Equal(t, now, ParseDate(struct{}{}, now))
}

func TestDuplicateFilterUsesFullIdentityTuple(t *testing.T) {
	c := models.Case{
		RefNo:         "VRF-1001",
		CandidateName: "Priya Sharma",
		CheckType:     "Address",
		Client:        "Acme Corp",
		City:          "Bengaluru",
		Pincode:       "560001",
		ContactNumber: "9876543210",
	}
	f := DuplicateFilter(c)
	assert.Len(t, f, 11)
	assert.Equal(t, "VRF-1001", f["refNo"])
	assert.Equal(t, "Priya Sharma", f["candidateName"])
	assert.Equal(t, "", f["state"], "missing fields still participate in the filter")
}
