package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/kensaku/internal/models"
)

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.json")
	content := `{"movies": [
		{"id": 1, "title": "Brave", "description": "A princess defies custom."},
		{"id": 2, "title": "Cars", "description": ""}
	]}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if c.Movies()[0].Title != "Brave" {
		t.Errorf("order not preserved: %+v", c.Movies()[0])
	}
	m, ok := c.Get(2)
	if !ok || m.Title != "Cars" {
		t.Errorf("Get(2) = %+v, %v", m, ok)
	}
	if _, ok := c.Get(3); ok {
		t.Error("Get(3) should miss")
	}
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movies.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]interface{}{"Title", "ID", "Description"})
	_ = f.SetSheetRow(sheet, "A2", &[]interface{}{"Brave", 1, "A princess."})
	_ = f.SetSheetRow(sheet, "A3", &[]interface{}{"Cars", 2})
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	m, _ := c.Get(1)
	if m == nil || m.Title != "Brave" || m.Description != "A princess." {
		t.Errorf("movie 1 = %+v", m)
	}
	m, _ = c.Get(2)
	if m == nil || m.Description != "" {
		t.Errorf("movie 2 = %+v", m)
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	_, err := Load("movies.csv")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNew_DuplicateID(t *testing.T) {
	_, err := New([]*models.Movie{{ID: 1}, {ID: 1}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
}

func TestFingerprint(t *testing.T) {
	a, _ := New([]*models.Movie{{ID: 1, Title: "Brave", Description: "x"}})
	b, _ := New([]*models.Movie{{ID: 1, Title: "Brave", Description: "x"}})
	c, _ := New([]*models.Movie{{ID: 1, Title: "Brave", Description: "y"}})
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("same content should hash the same")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("content edit with the same count should change the fingerprint")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("fingerprint length = %d", len(a.Fingerprint()))
	}
}
