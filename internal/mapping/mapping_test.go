package mapping

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallpine/kioskdocs/internal/models"
)

func ptr[T any](v T) *T { return &v }

func fixedMapper() *Mapper {
	m := New(Business{}, nil)
	m.Now = func() time.Time { return time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC) }
	return m
}

func deerJob() *models.Job {
	killed := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	return &models.Job{
		ID:           "job-1",
		InvoiceNo:    "251101-4821",
		Version:      1,
		Species:      models.SpeciesDeer,
		Sex:          models.SexMale,
		AntlerPoints: ptr(8),
		DateKilled:   &killed,
		LicenseNo:    ptr("TX-99812"),
		Customer:     &models.Customer{Name: "John Doe", Phone: "903-555-0100"},
	}
}

func TestProofOfSexNamed_AntleredDeer(t *testing.T) {
	f := fixedMapper().ProofOfSexNamed(deerJob())

	assert.Equal(t, "John Doe", f.Text[FieldHunterName])
	assert.Equal(t, "antlered", f.Choice[GroupSpeciesSex])
	assert.Equal(t, "8", f.Text[FieldAntlerPoints])
	assert.Equal(t, "11/01/2025", f.Text[FieldKillDate])
	assert.Equal(t, "251101-4821", f.Text[FieldInvoiceNumber])
	assert.Equal(t, "11/03/2025", f.Text[FieldToday])
	assert.NotContains(t, f.Choice, GroupBeard)
}

func TestProofOfSexNamed_DeerNotMale(t *testing.T) {
	for _, sex := range []models.Sex{models.SexFemale, models.SexUnknown, ""} {
		t.Run(string(sex), func(t *testing.T) {
			job := deerJob()
			job.Sex = sex
			f := fixedMapper().ProofOfSexNamed(job)

			assert.Equal(t, "antlerless", f.Choice[GroupSpeciesSex])
			assert.Empty(t, f.Text[FieldAntlerPoints])
		})
	}
}

func TestProofOfSexNamed_SpeciesSexChoices(t *testing.T) {
	tests := []struct {
		species models.Species
		sex     models.Sex
		want    string
	}{
		{models.SpeciesTurkey, models.SexMale, "turkey_gobbler"},
		{models.SpeciesTurkey, models.SexFemale, "turkey_hen"},
		{models.SpeciesPronghorn, models.SexMale, "pronghorn_buck"},
		{models.SpeciesPronghorn, models.SexFemale, "pronghorn_doe"},
		{models.SpeciesPheasant, models.SexMale, "pheasant_cock"},
		{models.SpeciesPheasant, models.SexFemale, "pheasant_hen"},
		{models.SpeciesDeer, models.SexUnknown, "antlerless"},
		{models.SpeciesTurkey, models.SexUnknown, "turkey_hen"},
		{models.SpeciesPronghorn, models.SexUnknown, "pronghorn_doe"},
		{models.SpeciesPheasant, models.SexUnknown, "pheasant_hen"},
		{models.SpeciesPheasant, "", "pheasant_hen"},
		{models.SpeciesDuck, models.SexMale, ""},
		{models.SpeciesOther, models.SexFemale, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.species)+"/"+string(tt.sex), func(t *testing.T) {
			job := &models.Job{Species: tt.species, Sex: tt.sex}
			f := fixedMapper().ProofOfSexNamed(job)

			got, ok := f.Choice[GroupSpeciesSex]
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProofOfSexNamed_TurkeyBeard(t *testing.T) {
	tests := []struct {
		name  string
		job   models.Job
		want  string
		isSet bool
	}{
		{"gobbler without beard", models.Job{Species: models.SpeciesTurkey, Sex: models.SexMale, BeardAttached: ptr(false)}, BeardNo, true},
		{"gobbler with beard", models.Job{Species: models.SpeciesTurkey, Sex: models.SexMale, BeardAttached: ptr(true)}, BeardYes, true},
		{"gobbler unanswered", models.Job{Species: models.SpeciesTurkey, Sex: models.SexMale}, BeardNo, true},
		{"hen", models.Job{Species: models.SpeciesTurkey, Sex: models.SexFemale, BeardAttached: ptr(true)}, "", false},
		{"buck", models.Job{Species: models.SpeciesDeer, Sex: models.SexMale, BeardAttached: ptr(true)}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fixedMapper().ProofOfSexNamed(&tt.job)
			got, ok := f.Choice[GroupBeard]
			assert.Equal(t, tt.isSet, ok)
			assert.Equal(t, tt.want, got)
			if tt.isSet {
				assert.Equal(t, "turkey_gobbler", f.Choice[GroupSpeciesSex])
			}
		})
	}
}

func TestNamedFields_NeverUndefined(t *testing.T) {
	jobs := map[string]*models.Job{
		"nil job":       nil,
		"empty job":     {},
		"bare customer": {Customer: &models.Customer{Name: "Jane"}, Species: models.SpeciesDuck},
	}
	m := fixedMapper()
	for name, job := range jobs {
		t.Run(name, func(t *testing.T) {
			for _, f := range []NamedFields{m.ProofOfSexNamed(job), m.ResourceNamed(job)} {
				for k, v := range f.Text {
					assert.NotContains(t, []string{"undefined", "null", "<nil>"}, v, "field %s", k)
				}
			}
			for _, d := range append(m.ProofOfSexCoordinates(job), m.ResourceCoordinates(job)...) {
				assert.False(t, strings.Contains(d.Text, "<nil>"), "draw %s", d.ID)
			}
		})
	}
}

func TestResourceNamed_MissingContactIsBlank(t *testing.T) {
	job := &models.Job{Customer: &models.Customer{Name: "Jane", Phone: "555"}}
	f := fixedMapper().ResourceNamed(job)

	for _, key := range []string{"donor_address", "donor_city", "donor_state", "donor_zip", "license_number", "instructions", "kill_date"} {
		v, ok := f.Text[key]
		assert.True(t, ok, key)
		assert.Equal(t, "", v, key)
	}
	assert.Equal(t, "1", f.Text["quantity"])
	assert.Equal(t, "Basic", f.Text["processing_type"])
	assert.Equal(t, DefaultBusiness.Name, f.Text["receiver_name"])
	assert.Equal(t, DefaultBusiness.Address, f.Text["receiver_address"])
}

func TestResourceNamed_Weights(t *testing.T) {
	job := &models.Job{HangWeight: ptr(142.5), YieldWeight: ptr(0.0)}
	f := fixedMapper().ResourceNamed(job)

	assert.Equal(t, "142.5", f.Text["hang_weight"])
	assert.NotContains(t, f.Text, "yield_weight")

	draws := fixedMapper().ResourceCoordinates(job)
	var hang *Draw
	for i := range draws {
		assert.NotEqual(t, "yield_weight", draws[i].ID)
		if draws[i].ID == "hang_weight" {
			hang = &draws[i]
		}
	}
	require.NotNil(t, hang)
	assert.Equal(t, "Hang: 142.5 lb", hang.Text)
	assert.Equal(t, 120.0, hang.X)
	assert.Equal(t, 470.0, hang.Y)
}

func TestResourceNamed_ReceiverOverrideAndCuts(t *testing.T) {
	job := &models.Job{
		BusinessName: ptr("Satellite Cooler"),
		CutSheet:     map[string]bool{"Back Strap": true, "ground": false},
	}
	f := fixedMapper().ResourceNamed(job)

	assert.Equal(t, "Satellite Cooler", f.Text["receiver_name"])
	assert.Equal(t, DefaultBusiness.Address, f.Text["receiver_address"])
	assert.NotContains(t, f.Text, "receiver_phone", "the WRD form has no receiver phone field")
	assert.Equal(t, map[string]bool{"cut_back_strap": true, "cut_ground": false}, f.Bool)
}

func TestProofOfSexCoordinates_Layout(t *testing.T) {
	draws := fixedMapper().ProofOfSexCoordinates(deerJob())

	byID := map[string]Draw{}
	for _, d := range draws {
		byID[d.ID] = d
	}
	assert.Equal(t, Draw{ID: "name", Text: "John Doe", X: 120, Y: 708, FontSize: 11}, byID["name"])
	assert.Equal(t, "8", byID["antler_points"].Text)
	assert.Equal(t, "TX", byID["state"].Text)
	assert.Equal(t, "Invoice: 251101-4821", byID["invoice"].Text)
	assert.Equal(t, 10.0, byID["invoice"].FontSize)
	assert.NotContains(t, byID, "beard_yes")
	assert.NotContains(t, byID, "beard_no")
}

func TestProofOfSexCoordinates_BeardMark(t *testing.T) {
	job := &models.Job{Species: models.SpeciesTurkey, Sex: models.SexMale, BeardAttached: ptr(true)}
	draws := fixedMapper().ProofOfSexCoordinates(job)

	var marks []Draw
	for _, d := range draws {
		if strings.HasPrefix(d.ID, "beard_") {
			marks = append(marks, d)
		}
	}
	require.Len(t, marks, 1)
	assert.Equal(t, Draw{ID: "beard_yes", Text: "X", X: 360, Y: 600, FontSize: 14}, marks[0])
}

func TestMapper_Idempotent(t *testing.T) {
	m := fixedMapper()
	job := deerJob()
	job.CutSheet = map[string]bool{"steaks": true, "roast": true, "jerky": false}

	assert.Equal(t, m.Named(job, models.DocProofOfSex), m.Named(job, models.DocProofOfSex))
	assert.Equal(t, m.Named(job, models.DocResource), m.Named(job, models.DocResource))
	assert.Equal(t, m.Coordinates(job, models.DocResource), m.Coordinates(job, models.DocResource))
}

func TestDraw_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultFontSize, Draw{}.Size())
	assert.Equal(t, 14.0, Draw{FontSize: 14}.Size())
}

func TestLayouts_ApplyAndAlias(t *testing.T) {
	raw := []byte(`
documents:
  pwd535:
    offsetY: -4
    fields:
      name: {x: 130, size: 12}
      email: {hidden: true}
    aliases:
      hunter_name: HunterName
      Group4: SpeciesGroup
`)
	layouts, err := ParseLayouts(raw)
	require.NoError(t, err)

	m := fixedMapper()
	m.Layouts = layouts
	job := deerJob()

	byID := map[string]Draw{}
	for _, d := range m.Coordinates(job, models.DocProofOfSex) {
		byID[d.ID] = d
	}
	assert.Equal(t, 130.0, byID["name"].X)
	assert.Equal(t, 704.0, byID["name"].Y)
	assert.Equal(t, 12.0, byID["name"].FontSize)
	assert.NotContains(t, byID, "email")

	named := m.Named(job, models.DocProofOfSex)
	assert.Equal(t, "John Doe", named.Text["HunterName"])
	assert.NotContains(t, named.Text, FieldHunterName)
	assert.Equal(t, "antlered", named.Choice["SpeciesGroup"])

	// Resource layout untouched.
	assert.Equal(t, m.ResourceCoordinates(job), m.Coordinates(job, models.DocResource))
}

func TestParseLayouts_UnknownDocument(t *testing.T) {
	_, err := ParseLayouts([]byte("documents:\n  W9:\n    offsetX: 1\n"))
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	a := deerJob()
	b := deerJob()
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	b.Version = 7
	b.Status = models.StatusFreezer
	assert.Equal(t, Fingerprint(a), Fingerprint(b), "workflow fields must not affect the fingerprint")

	b.AntlerPoints = ptr(10)
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Empty(t, Fingerprint(nil))
}
