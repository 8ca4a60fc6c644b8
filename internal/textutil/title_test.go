package textutil

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := map[string]string{
		"The Matrix":           "matrix",
		"  Amélie ":            "amelie",
		"Schindler's List":     "schindlers list",
		"Spider-Man: No Way":   "spider man no way",
		"The":                  "the",
		"":                     "",
		"WALL·E":               "wall e",
		"Mission: Impossible ": "mission impossible",
	}
	for input, want := range tests {
		if got := NormalizeTitle(input); got != want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSameTitle(t *testing.T) {
	if !SameTitle("The Matrix", "matrix") {
		t.Fatal("expected titles to match")
	}
	if SameTitle("", "") {
		t.Fatal("blank titles must not match")
	}
}

func TestContainsTitle(t *testing.T) {
	if !ContainsTitle("Dune: Part Two arrives in theaters", "Dune Part Two") {
		t.Fatal("expected phrase match")
	}
	if ContainsTitle("Duneland documentary", "Dune") {
		t.Fatal("expected whole-word matching")
	}
	if ContainsTitle("anything", "") {
		t.Fatal("empty title must not match")
	}
}

func TestDisplayLabel(t *testing.T) {
	if got := DisplayLabel("all_ages"); got != "All Ages" {
		t.Fatalf("DisplayLabel = %q", got)
	}
	if got := DisplayLabel(""); got != "" {
		t.Fatalf("DisplayLabel empty = %q", got)
	}
}
