package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-scraper/models"
)

func sampleListing(id int, title, url string) models.BasicListing {
	return models.BasicListing{
		ID:          id,
		Title:       models.Known(title),
		Price:       models.Known("85 000 DH"),
		PublishedAt: models.Known("2024-03-15 14:30:00"),
		Year:        models.Known("2019"),
		URL:         models.Known(url),
		Folder:      "1_" + title,
	}
}

func TestListingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "avito_listings_p1-p1.csv")
	in := []models.BasicListing{
		sampleListing(1, "Dacia_Logan", "https://example.com/a"),
		{ID: 2, Folder: "2_"},
	}

	require.NoError(t, WriteListings(path, in))
	out, err := ReadListings(path)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, in[0], out[0])
	assert.False(t, out[1].Title.Known)
	assert.False(t, out[1].URL.Known)
	assert.Equal(t, "2_", out[1].Folder)
}

func TestReadListingsRejectsBadID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "id,title,price,published_at,year,fuel_type,transmission,seller,url,folder\n" +
		"x,a,b,c,d,e,f,g,h,i\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := ReadListings(path)
	assert.Error(t, err)
}

func TestCSVWriterWritesSentinels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "details.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	basic := sampleListing(1, "Dacia_Logan", "https://example.com/a")
	detail := models.NewDetailRecord(1, basic.Folder)
	detail.Brand = models.Known("DACIA")
	detail.Images = []models.AssetReference{{Index: 1, Path: "1_Dacia_Logan/image_1.jpg"}}

	require.NoError(t, w.Write(context.Background(), []models.CombinedRecord{{Basic: basic, Detail: detail}}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, models.CombinedHeader, rows[0])
	row := map[string]string{}
	for i, h := range rows[0] {
		row[h] = rows[1][i]
	}
	assert.Equal(t, "DACIA", row["brand"])
	assert.Equal(t, models.Unknown, row["mileage"])
	assert.Equal(t, models.Unknown, row["seller"])
	assert.Equal(t, "1_Dacia_Logan/image_1.jpg", row["images"])
}

func TestCheckpointSaveLoad(t *testing.T) {
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	defer cp.Close()

	ctx := context.Background()
	listing := sampleListing(3, "Renault_Clio", "https://example.com/c")

	_, found, err := cp.Load(ctx, "avito", listing)
	require.NoError(t, err)
	assert.False(t, found)

	rec := models.NewDetailRecord(3, listing.Folder)
	rec.Mileage = models.Known("120 000 km")
	rec.Images = []models.AssetReference{{Index: 2, Path: "x/image_2.jpg"}}
	require.NoError(t, cp.Save(ctx, "avito", listing, rec))

	got, found, err := cp.Load(ctx, "avito", listing)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec, got)

	_, found, err = cp.Load(ctx, "moteur", listing)
	require.NoError(t, err)
	assert.False(t, found, "records are scoped by site")
}

func TestCheckpointSkipsUnresolved(t *testing.T) {
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	defer cp.Close()

	ctx := context.Background()
	listing := sampleListing(4, "Peugeot_208", "https://example.com/d")
	require.NoError(t, cp.Save(ctx, "avito", listing, models.NewDetailRecord(4, listing.Folder)))

	_, found, err := cp.Load(ctx, "avito", listing)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEntryValuesCarryRunContext(t *testing.T) {
	basic := sampleListing(1, "Dacia_Logan", "https://example.com/a")
	values := entryValues(models.CombinedRecord{Basic: basic, Detail: models.NewDetailRecord(1, basic.Folder)}, "avito", "run-1")

	assert.Equal(t, "avito", values["site"])
	assert.Equal(t, "run-1", values["run_id"])
	assert.Equal(t, "Dacia_Logan", values["title"])
	assert.Equal(t, models.Unknown, values["brand"])
	assert.Len(t, values, len(models.CombinedHeader)+2)
}

func TestNullable(t *testing.T) {
	assert.False(t, nullable(models.Field{}).Valid)
	n := nullable(models.Known("5"))
	assert.True(t, n.Valid)
	assert.Equal(t, "5", n.String)
}
