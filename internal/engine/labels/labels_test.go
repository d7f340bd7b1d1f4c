package labels

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/crimson-sun/pilar/internal/errs"
	"github.com/crimson-sun/pilar/internal/model"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New(
		[]string{"battery", "food_waste", "plastic_bottle", "leaf"},
		map[string]string{
			"battery":        "B3",
			"food_waste":     "organik",
			"plastic_bottle": "anorganik",
			"leaf":           "Organic",
		},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestResolve(t *testing.T) {
	r := newResolver(t)
	tests := []struct {
		idx  int
		want Label
	}{
		{0, Label{0, "battery", "Battery", model.Inorganic}},
		{1, Label{1, "food_waste", "Food Waste", model.Organic}},
		{2, Label{2, "plastic_bottle", "Plastic Bottle", model.Inorganic}},
		{3, Label{3, "leaf", "Leaf", model.Organic}},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.idx)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", tt.idx, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%d) = %+v, want %+v", tt.idx, got, tt.want)
		}
	}
}

func TestResolveOutOfRange(t *testing.T) {
	r := newResolver(t)
	for _, idx := range []int{-1, 4} {
		if _, err := r.Resolve(idx); !errs.Is(err, errs.Shape) {
			t.Errorf("Resolve(%d): kind = %v, want Shape", idx, errs.KindOf(err))
		}
	}
}

func TestUnmappedClassIsInorganic(t *testing.T) {
	r, err := New([]string{"banana_peel"}, map[string]string{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := r.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Category != model.Inorganic {
		t.Errorf("Category = %v, want inorganic", got.Category)
	}
	if r.Mapped("banana_peel") {
		t.Error("Mapped() = true for class without entry")
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in    string
		want  model.Category
		known bool
	}{
		{"organik", model.Organic, true},
		{" ORGANIC ", model.Organic, true},
		{"anorganik", model.Inorganic, true},
		{"inorganic", model.Inorganic, true},
		{"B3", model.Inorganic, false},
		{"", model.Inorganic, false},
	}
	for _, tt := range tests {
		got, known := NormalizeCategory(tt.in)
		if got != tt.want || known != tt.known {
			t.Errorf("NormalizeCategory(%q) = %v, %v; want %v, %v", tt.in, got, known, tt.want, tt.known)
		}
	}
}

func TestDisplay(t *testing.T) {
	tests := map[string]string{
		"food_waste":        "Food Waste",
		"plastic-bottle":    "Plastic Bottle",
		"kardus":            "Kardus",
		"  double__under  ": "Double Under",
	}
	for in, want := range tests {
		if got := Display(in); got != want {
			t.Errorf("Display(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for no classes")
	}
	if _, err := New([]string{"a", "a"}, nil); err == nil {
		t.Error("expected error for duplicate class")
	}
	if _, err := New([]string{"a", " "}, nil); err == nil {
		t.Error("expected error for empty class")
	}
}

func TestClassesIsCopy(t *testing.T) {
	r := newResolver(t)
	c := r.Classes()
	c[0] = "changed"
	if !reflect.DeepEqual(r.Classes()[0], "battery") {
		t.Error("Classes() exposed internal slice")
	}
}

func TestNewWarnsOnUnknownCategory(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	_ = newResolver(t)

	out := buf.String()
	if n := strings.Count(out, "unknown category value"); n != 1 {
		t.Fatalf("got %d warnings, want 1:\n%s", n, out)
	}
	if !strings.Contains(out, "class=battery") || !strings.Contains(out, "category=B3") {
		t.Errorf("warning does not name the class and value:\n%s", out)
	}
}

func TestCategoryNormalisesKeys(t *testing.T) {
	// "caf\u0065\u0301" is the decomposed spelling of "café".
	r, err := New([]string{"caf\u00e9"}, map[string]string{"caf\u0065\u0301": "organik"})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Category("caf\u00e9"); got != model.Organic {
		t.Errorf("Category(composed) = %q, want %q", got, model.Organic)
	}
	if !r.Mapped(" caf\u0065\u0301 ") {
		t.Error("Mapped(decomposed, padded) = false, want true")
	}
}
