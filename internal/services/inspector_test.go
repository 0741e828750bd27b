package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallpine/kioskdocs/internal/mapping"
	"github.com/tallpine/kioskdocs/internal/models"
	"github.com/tallpine/kioskdocs/internal/render"
)

func newTestInspector(store *memStore, engine *fakeEngine) *TemplateInspector {
	return NewTemplateInspector("kiosk-templates", store, render.NewRenderer(engine, nil), testMapper(), testTemplates(), nil)
}

func TestInspector_IgnoresUnrelatedObjects(t *testing.T) {
	store := newMemStore()
	f := newTestInspector(store, &fakeEngine{})
	ctx := context.Background()

	report, err := f.Process(ctx, models.GCSEvent{Bucket: "other-bucket", Name: "pwd-535.pdf"})
	require.NoError(t, err)
	assert.Nil(t, report)

	report, err = f.Process(ctx, models.GCSEvent{Bucket: "kiosk-templates", Name: "logo.png"})
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Zero(t, store.fetches)
}

func TestInspector_RejectsInvalidUpload(t *testing.T) {
	store := newMemStore()
	store.templates["wrd.pdf"] = []byte("PK\x03\x04 zip file")

	_, err := newTestInspector(store, &fakeEngine{}).Process(context.Background(), models.GCSEvent{Bucket: "kiosk-templates", Name: "wrd.pdf"})

	var invalid *render.TemplateInvalidError
	assert.ErrorAs(t, err, &invalid)
}

func TestInspector_ReportsUnmatchedNames(t *testing.T) {
	store := newMemStore()
	store.templates["pwd-535.pdf"] = templatePDF
	engine := &fakeEngine{inv: render.FieldInventory{
		PageCount: 1,
		Fields: map[string]render.Field{
			mapping.FieldHunterName:   {Name: mapping.FieldHunterName, Kind: render.KindText},
			mapping.GroupSpeciesSex:   {Name: mapping.GroupSpeciesSex, Kind: render.KindRadio},
			mapping.FieldAntlerPoints: {Name: mapping.FieldAntlerPoints, Kind: render.KindText},
		},
	}}

	report, err := newTestInspector(store, engine).Process(context.Background(), models.GCSEvent{Bucket: "kiosk-templates", Name: "pwd-535.pdf"})
	require.NoError(t, err)

	assert.Equal(t, models.DocProofOfSex, report.DocType)
	assert.Equal(t, "named", report.Strategy)
	assert.Equal(t, []string{mapping.GroupSpeciesSex, mapping.FieldAntlerPoints, mapping.FieldHunterName}, report.Fields)
	assert.Contains(t, report.Unmatched, mapping.FieldKillDate)
	assert.Contains(t, report.Unmatched, mapping.GroupBeard)
	assert.NotContains(t, report.Unmatched, mapping.FieldHunterName)
}

func TestInspector_FlatTemplate(t *testing.T) {
	store := newMemStore()
	store.templates["wrd.pdf"] = templatePDF

	report, err := newTestInspector(store, &fakeEngine{inv: render.FieldInventory{PageCount: 2}}).
		Process(context.Background(), models.GCSEvent{Bucket: "kiosk-templates", Name: "wrd.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "coordinate", report.Strategy)
	assert.Equal(t, 2, report.PageCount)
	assert.Empty(t, report.Unmatched)
}
