package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldverify/field-verify-api/models"
)

func photos(n int) []models.Photo {
	p := make([]models.Photo, n)
	for i := range p {
		p[i] = models.Photo{ID: "p", URI: "/tmp/p.jpg"}
	}
	return p
}

// uploadedPhotos are photos already pushed to object storage, as left behind
// by a previous submission.
func uploadedPhotos(n int) []models.Photo {
	p := make([]models.Photo, n)
	for i := range p {
		p[i] = models.Photo{ID: "p", URI: "https://res.example.com/image/upload/v1/cases/x/p.jpg"}
	}
	return p
}

func TestSelectPolicyDefault(t *testing.T) {
	p := SelectPolicy(models.Case{Client: "Acme Corp"})
	assert.Equal(t, "standard", p.Name)
	assert.True(t, p.RequiresForm)
	assert.Len(t, p.Requirements, 5)
}

func TestSelectPolicyClientMatchIsCaseInsensitive(t *testing.T) {
	p := SelectPolicy(models.Case{Client: "  r a associates  "})
	assert.Equal(t, "ra-associates", p.Name)
	assert.Equal(t, 6, p.Requirements[0].Min)
}

func TestSelectPolicyCESPhotosOnly(t *testing.T) {
	p := SelectPolicy(models.Case{Client: "Acme Corp", CESType: "no"})
	assert.Equal(t, "ces-photos-only", p.Name)
	assert.False(t, p.RequiresForm)
}

func TestEvaluateReady(t *testing.T) {
	c := models.Case{
		PhotosFolder: map[string][]models.Photo{
			"selfie":    photos(1),
			"house":     photos(2),
			"street":    photos(3),
			"nameplate": photos(1),
			"document":  photos(1),
		},
		FormCompleted: true,
	}
	res := Evaluate(c, Default)
	assert.True(t, res.Ready)
	assert.Empty(t, res.Missing)
	assert.Len(t, res.Categories, 5)
}

func TestEvaluateReportsMissingCounts(t *testing.T) {
	c := models.Case{
		PhotosFolder: map[string][]models.Photo{
			"selfie": photos(1),
			"house":  photos(1),
		},
		FormCompleted: true,
	}
	res := Evaluate(c, Default)
	assert.False(t, res.Ready)
	assert.Contains(t, res.Missing, "house (1 of 2)")
	assert.Contains(t, res.Missing, "street (0 of 2)")
	assert.Contains(t, res.Missing, "nameplate (0 of 1)")
	assert.Contains(t, res.Missing, "document (0 of 1)")
	assert.NotContains(t, res.Missing, "selfie (1 of 1)")
}

func TestEvaluateMissingForm(t *testing.T) {
	c := models.Case{
		PhotosFolder: map[string][]models.Photo{
			"selfie":    photos(1),
			"house":     photos(2),
			"street":    photos(2),
			"nameplate": photos(1),
			"document":  photos(1),
		},
	}
	res := Evaluate(c, Default)
	assert.False(t, res.Ready)
	assert.Equal(t, []string{"filled form"}, res.Missing)
}

func TestEvaluateRedoIgnoresUploadedEvidence(t *testing.T) {
	c := models.Case{
		PhotosFolder: map[string][]models.Photo{
			"selfie":    uploadedPhotos(1),
			"house":     uploadedPhotos(2),
			"street":    uploadedPhotos(2),
			"nameplate": uploadedPhotos(1),
			"document":  uploadedPhotos(1),
		},
		FormCompleted: true,
		PhotosToRedo:  []string{"house"},
	}
	res := Evaluate(c, Default)
	assert.False(t, res.Ready)
	assert.Contains(t, res.Missing, "house (0 of 2)")
}

func TestEvaluateRedoCountsFreshRecaptures(t *testing.T) {
	c := models.Case{
		PhotosFolder: map[string][]models.Photo{
			"selfie":    uploadedPhotos(1),
			"house":     append(uploadedPhotos(2), photos(2)...),
			"street":    uploadedPhotos(2),
			"nameplate": uploadedPhotos(1),
			"document":  uploadedPhotos(1),
		},
		FormCompleted: true,
		PhotosToRedo:  []string{"house"},
	}
	res := Evaluate(c, Default)
	assert.True(t, res.Ready)
	assert.Empty(t, res.Missing)
}

func TestEvaluateMinZeroFallsBackToMax(t *testing.T) {
	p := Policy{
		Name:         "max-only",
		Requirements: []Requirement{{Category: "landmark", Max: 3}},
	}
	c := models.Case{PhotosFolder: map[string][]models.Photo{"landmark": photos(2)}}
	res := Evaluate(c, p)
	assert.False(t, res.Ready)
	assert.Equal(t, 3, res.Categories[0].Need)
}
