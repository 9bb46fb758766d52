package preprocessing

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/dataset/datasettest"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

func TestSimpleImputer(t *testing.T) {
	tests := []struct {
		name     string
		strategy ImputeStrategy
		fill     string
		in       []string
		want     []string
	}{
		{"most frequent", MostFrequent, "", []string{"Brooklyn", "", "Manhattan", "Brooklyn"}, []string{"Brooklyn", "Brooklyn", "Manhattan", "Brooklyn"}},
		{"most frequent tie takes smallest", MostFrequent, "", []string{"b", "a", ""}, []string{"b", "a", "a"}},
		{"constant", Constant, "0", []string{"", "3"}, []string{"0", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := NewSimpleImputer(tt.strategy, tt.fill)
			if err := imp.Fit([][]string{tt.in}); err != nil {
				t.Fatalf("Fit: %v", err)
			}
			got, err := imp.Transform([][]string{tt.in})
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}
			for i := range tt.want {
				if got[0][i] != tt.want[i] {
					t.Errorf("row %d = %q, want %q", i, got[0][i], tt.want[i])
				}
			}
		})
	}
}

func TestSimpleImputerErrors(t *testing.T) {
	imp := NewSimpleImputer(MostFrequent, "")
	if _, err := imp.Transform([][]string{{"a"}}); err == nil {
		t.Error("expected NotFittedError")
	}
	if err := imp.Fit([][]string{{"", ""}}); err == nil {
		t.Error("expected error for all-missing column")
	}
	bad := NewSimpleImputer("median", "")
	var vErr *errors.ValidationError
	if !errors.As(bad.Fit([][]string{{"1"}}), &vErr) {
		t.Error("expected ValidationError for unknown strategy")
	}
}

func TestOrdinalEncoder(t *testing.T) {
	enc := NewOrdinalEncoder()
	train := [][]string{{"Private room", "Entire home/apt", "Shared room", "Private room"}}
	if err := enc.Fit(train); err != nil {
		t.Fatal(err)
	}
	got, err := enc.Transform([][]string{{"Shared room", "Entire home/apt", "Hotel room", ""}})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 0, UnknownCategory, UnknownCategory}
	for i, w := range want {
		if got.At(i, 0) != w {
			t.Errorf("row %d = %v, want %v", i, got.At(i, 0), w)
		}
	}

	var dimErr *errors.DimensionError
	if _, err := enc.Transform([][]string{{"a"}, {"b"}}); !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}

func TestDateDelta(t *testing.T) {
	d := NewDateDelta(DefaultDateFill)
	cols := [][]string{{"2019-07-08", "2019-07-01", "garbage", "2019-07-08 00:00:00"}}
	if err := d.Fit(cols); err != nil {
		t.Fatal(err)
	}
	got, err := d.Transform(cols)
	if err != nil {
		t.Fatal(err)
	}
	// garbage falls back to 2010-01-01, 3475 days before 2019-07-08
	want := []float64{0, 7, 3475, 0}
	for i, w := range want {
		if got.At(i, 0) != w {
			t.Errorf("row %d = %v, want %v", i, got.At(i, 0), w)
		}
	}
}

func TestNumericEncoderMarksGarbage(t *testing.T) {
	e := NewNumericEncoder()
	cols := [][]string{{"1.5", "abc"}}
	if err := e.Fit(cols); err != nil {
		t.Fatal(err)
	}
	got, err := e.Transform(cols)
	if err != nil {
		t.Fatal(err)
	}
	if got.At(0, 0) != 1.5 || !math.IsNaN(got.At(1, 0)) {
		t.Errorf("got %v, %v", got.At(0, 0), got.At(1, 0))
	}
}

func TestTfidfVectorizer(t *testing.T) {
	docs := [][]string{{
		"Cozy room in the park",
		"Sunny cozy loft",
		"the and of",
		"Loft loft by park",
	}}
	v := NewTfidfVectorizer(3, true)
	if err := v.Fit(docs); err != nil {
		t.Fatal(err)
	}

	// corpus counts: loft 3, cozy 2, park 2, room 1, sunny 1
	wantTerms := []string{"cozy", "loft", "park"}
	if len(v.Terms) != len(wantTerms) {
		t.Fatalf("Terms = %v, want %v", v.Terms, wantTerms)
	}
	for i, w := range wantTerms {
		if v.Terms[i] != w {
			t.Errorf("Terms[%d] = %q, want %q", i, v.Terms[i], w)
		}
	}

	X, err := v.Transform(docs)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		var norm float64
		for j := 0; j < 3; j++ {
			norm += X.At(i, j) * X.At(i, j)
		}
		if i == 2 {
			if norm != 0 {
				t.Errorf("stop-word-only row should be all zero, got norm %v", norm)
			}
			continue
		}
		if math.Abs(norm-1) > 1e-12 {
			t.Errorf("row %d squared norm = %v, want 1", i, norm)
		}
	}

	// idf of "loft": df=2, n=4 -> ln(5/3)+1
	if math.Abs(v.Idf[1]-(math.Log(5.0/3.0)+1)) > 1e-12 {
		t.Errorf("idf(loft) = %v", v.Idf[1])
	}

	if k, ok := v.Vocabulary()["park"]; !ok || k != 2 {
		t.Errorf("Vocabulary()[park] = %d, %v", k, ok)
	}

	names := v.FeatureNames([]string{"name"})
	if names[0] != "name:cozy" {
		t.Errorf("FeatureNames()[0] = %q", names[0])
	}
}

func TestTfidfEmptyVocabulary(t *testing.T) {
	v := NewTfidfVectorizer(10, true)
	if err := v.Fit([][]string{{"the", "and"}}); err == nil {
		t.Error("expected error for empty vocabulary")
	}
}

func TestListingPipeline(t *testing.T) {
	f := datasettest.Synthetic(200, 1)
	ct := NewListingPipeline(5)

	X, err := ct.FitTransform(f)
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}
	r, c := X.Dims()
	if r != 200 {
		t.Errorf("rows = %d, want 200", r)
	}
	// room_type, neighbourhood_group, 7 numeric, last_review, 5 tf-idf terms
	if c != 15 {
		t.Errorf("cols = %d, want 15", c)
	}

	groups := ct.FeatureGroups()
	if len(groups) != 11 {
		t.Fatalf("groups = %d, want 11", len(groups))
	}
	last := groups[len(groups)-1]
	if last.Name != dataset.ColName || last.End-last.Start != 5 {
		t.Errorf("last group = %+v", last)
	}

	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(X.At(i, j)) {
				t.Fatalf("NaN at (%d,%d) %s", i, j, ct.Features[j])
			}
		}
	}
}

func TestListingPipelineRequiresColumns(t *testing.T) {
	f := datasettest.Synthetic(20, 2).Drop(dataset.ColRoomType)
	_, err := NewListingPipeline(5).FitTransform(f)
	var schemaErr *errors.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestColumnTransformerGobRoundTrip(t *testing.T) {
	f := datasettest.Synthetic(50, 3)
	ct := NewListingPipeline(4)
	want, err := ct.FitTransform(f)
	if err != nil {
		t.Fatal(err)
	}

	var buf, again bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ct); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := gob.NewEncoder(&again).Encode(ct); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), again.Bytes()) {
		t.Error("two encodings of one fitted transformer differ")
	}
	var restored ColumnTransformer
	if err := gob.NewDecoder(&buf).Decode(&restored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := restored.Transform(f)
	if err != nil {
		t.Fatalf("Transform after decode: %v", err)
	}
	r, c := want.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if got.At(i, j) != want.At(i, j) {
				t.Fatalf("(%d,%d) = %v, want %v", i, j, got.At(i, j), want.At(i, j))
			}
		}
	}
}
