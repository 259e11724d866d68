package loader

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

func TestReadCSVTypesAndMissing(t *testing.T) {
	in := "Order Date,Region,Sales,Note\n" +
		"2024-01-05,north,\"1,200.50\",first\n" +
		"2024-01-06,NA,300,\n" +
		"pending,south,N/A,third\n"
	ds, err := ReadCSV(strings.NewReader(in), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if ds.Rows() != 3 || ds.Width() != 4 {
		t.Fatalf("shape %dx%d", ds.Rows(), ds.Width())
	}
	sales, _ := ds.Column("Sales")
	if sales.Type != dataset.Number || sales.Numbers[0] != 1200.5 || !sales.IsNull(2) {
		t.Fatalf("sales = %+v", sales)
	}
	region, _ := ds.Column("Region")
	if region.Type != dataset.String || !region.IsNull(1) {
		t.Fatalf("region = %+v", region)
	}
	date, _ := ds.Column("Order Date")
	if date.Type != dataset.String {
		t.Fatalf("dates stay strings until cleaning, got %s", date.Type)
	}
	note, _ := ds.Column("Note")
	if !note.IsNull(1) {
		t.Fatalf("empty cell should be missing")
	}
}

func TestReadCSVSniffsSemicolonAndDecimalComma(t *testing.T) {
	in := "group;score\nA;0,5\nB;1.000,25\n"
	ds, err := ReadCSV(strings.NewReader(in), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	score, ok := ds.Column("score")
	if !ok || score.Type != dataset.Number {
		t.Fatalf("score column missing or not numeric: %v", ds.Names())
	}
	if score.Numbers[0] != 0.5 || score.Numbers[1] != 1000.25 {
		t.Fatalf("numbers = %v", score.Numbers)
	}
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"1,234", 1234, true},
		{"1,234,567", 1234567, true},
		{"0,5", 0.5, true},
		{"$1,200.50", 1200.5, true},
		{"12%", 12, true},
		{"1e3", 1000, true},
		{"2024-01-05", 0, false},
		{"inf", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumeric(tt.in, Options{})
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseNumeric(%q) = %v, %v", tt.in, got, ok)
		}
	}
}

func TestHeadersMadeUnique(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("a,a,\n1,2,3\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	got := strings.Join(ds.Names(), ",")
	if got != "a,a_2,column_3" {
		t.Fatalf("names = %s", got)
	}
}

func TestRaggedRowsArePadded(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("a,b,c\n1,2\n4,5,6\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	c, _ := ds.Column("c")
	if !c.IsNull(0) || c.Numbers[1] != 6 {
		t.Fatalf("c = %+v", c)
	}
}

func TestEmptyInput(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader(""), DefaultOptions()); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("empty file: %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("a,b\n"), DefaultOptions()); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("header only: %v", err)
	}
}

func TestMaxRows(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 2
	ds, err := ReadCSV(strings.NewReader("x\n1\n2\n3\n"), opt)
	if err != nil || ds.Rows() != 2 {
		t.Fatalf("rows = %v, %v", ds, err)
	}
}

func TestLoadCSVFromDiskTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.tsv")
	if err := os.WriteFile(path, []byte("a,b\tc\n1\t2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := strings.Join(ds.Names(), "|"); got != "a,b|c" {
		t.Fatalf("tsv extension should force tabs, got %s", got)
	}
}

func TestUnsupportedExtension(t *testing.T) {
	if _, err := Load("report.pdf", DefaultOptions()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v", err)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	ds, err := dataset.FromColumns(
		dataset.NewStringColumn("region", []string{"north", "", "south"}, []bool{false, true, false}),
		dataset.NewNumberColumn("sales", []float64{10.5, 20, 30}),
	)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := SaveXLSX(ds, path); err != nil {
		t.Fatalf("SaveXLSX: %v", err)
	}
	sheets, err := Sheets(path)
	if err != nil || len(sheets) != 1 || sheets[0] != ExportSheet {
		t.Fatalf("sheets = %v, %v", sheets, err)
	}
	back, err := LoadXLSX(path, "", 1, DefaultOptions())
	if err != nil {
		t.Fatalf("LoadXLSX: %v", err)
	}
	if back.Rows() != 3 || back.Width() != 2 {
		t.Fatalf("shape %dx%d", back.Rows(), back.Width())
	}
	sales, _ := back.Column("sales")
	if sales.Type != dataset.Number || sales.Numbers[0] != 10.5 {
		t.Fatalf("sales = %+v", sales)
	}
	region, _ := back.Column("region")
	if !region.IsNull(1) {
		t.Fatalf("null cell should load as missing")
	}
}

func TestLoadXLSXSelectsSheet(t *testing.T) {
	f := excelize.NewFile()
	if _, err := f.NewSheet("Second"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Second", "A1", &[]interface{}{"k", "v"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Second", "A2", &[]interface{}{"x", 3}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := LoadXLSX(path, "Second", 0, DefaultOptions())
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	v, _ := ds.Column("v")
	if v.Type != dataset.Number || v.Numbers[0] != 3 {
		t.Fatalf("v = %+v", v)
	}
	if _, err := LoadXLSX(path, "", 1, DefaultOptions()); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("empty first sheet: %v", err)
	}
	if _, err := LoadXLSX(path, "", 5, DefaultOptions()); err == nil {
		t.Fatalf("out of range index should fail")
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	in := "name,qty\nwidget,3\n,\ngadget,1.5\n"
	ds, err := ReadCSV(strings.NewReader(in), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(ds, &buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if got := buf.String(); got != in {
		t.Fatalf("round trip mismatch:\n%q\nwant\n%q", got, in)
	}
}

func TestColumnTypesAreApplied(t *testing.T) {
	in := "zip,units,active,when,grade,price\n" +
		"02134,3.7,yes,2024-01-05,1,9.5\n" +
		"10001,x,no,soon,2,oops\n" +
		"94105,,Y,2024-02-01,1,3\n"
	opt := DefaultOptions()
	var err error
	opt.ColumnTypes, err = ParseColumnTypes([]string{
		"zip=string", "units=int", "active=boolean", "when=date", "grade=category", "price=float",
	})
	if err != nil {
		t.Fatalf("ParseColumnTypes: %v", err)
	}
	ds, err := ReadCSV(strings.NewReader(in), opt)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	zip, _ := ds.Column("zip")
	if zip.Type != dataset.String || zip.Categorical || zip.Strings[0] != "02134" {
		t.Fatalf("zip = %+v", zip)
	}
	units, _ := ds.Column("units")
	if units.Type != dataset.Number || units.NullCount() != 0 {
		t.Fatalf("units = %+v", units)
	}
	for i, want := range []float64{3, 0, 0} {
		if units.Numbers[i] != want {
			t.Fatalf("units[%d] = %v, want %v", i, units.Numbers[i], want)
		}
	}
	active, _ := ds.Column("active")
	if !active.Categorical || active.Strings[0] != "true" || active.Strings[1] != "false" || active.Strings[2] != "true" {
		t.Fatalf("active = %+v", active)
	}
	when, _ := ds.Column("when")
	if when.Type != dataset.Time || when.IsNull(0) || !when.IsNull(1) || when.Times[2].Month() != 2 {
		t.Fatalf("when = %+v", when)
	}
	grade, _ := ds.Column("grade")
	if grade.Type != dataset.String || !grade.Categorical {
		t.Fatalf("grade = %+v", grade)
	}
	// one value is not a number, so the column is left as read
	price, _ := ds.Column("price")
	if price.Type != dataset.String {
		t.Fatalf("price should stay a string column, got %s", price.Type)
	}
}

func TestColumnTypesRejectUnknown(t *testing.T) {
	if _, err := ParseColumnTypes([]string{"a=decimal"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
	if _, err := ParseColumnTypes([]string{"=int"}); err == nil {
		t.Fatalf("expected error for a declaration without a column")
	}
	m, err := ParseColumnTypes([]string{"a=b=Integer"})
	if err != nil || m["a=b"] != TypeInt {
		t.Fatalf("m = %v, err = %v", m, err)
	}
	opt := DefaultOptions()
	opt.ColumnTypes = map[string]ColumnType{"missing": TypeInt}
	if _, err := ReadCSV(strings.NewReader("a\n1\n"), opt); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}
}
