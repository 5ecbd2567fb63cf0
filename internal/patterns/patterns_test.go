package patterns

import (
	"reflect"
	"testing"

	"github.com/abrezinsky/ecobingo/internal/models"
)

// grid parses a 9-character card, row-major, where 'x' is a completed cell
func grid(s string) Grid {
	var g Grid
	for i, ch := range s {
		g[i/Size][i%Size] = ch == 'x'
	}
	return g
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		card string
		want []models.PatternCode
	}{
		{"empty", ".........", nil},
		{"top row", "xxx......", []models.PatternCode{models.PatternHoriz}},
		{"left column", "x..x..x..", []models.PatternCode{models.PatternVert}},
		{"perimeter", "xxxx.xxxx", []models.PatternCode{models.PatternO, models.PatternV, models.PatternHoriz, models.PatternVert}},
		{"corners and center", "x.x.x.x.x", []models.PatternCode{models.PatternX}},
		{"corners and middle row", "x.xxxxx.x", []models.PatternCode{models.PatternH, models.PatternX, models.PatternHoriz, models.PatternVert}},
		{"v shape", "x.xx.x.x.", []models.PatternCode{models.PatternV}},
		{"corners only", "x.x...x.x", nil},
		{"middle row only", "...xxx...", []models.PatternCode{models.PatternHoriz}},
		{"full card", "xxxxxxxxx", []models.PatternCode{
			models.PatternO, models.PatternH, models.PatternV, models.PatternX, models.PatternHoriz, models.PatternVert,
		}},
		{"perimeter missing one corner", "xxxx.xxx.", []models.PatternCode{models.PatternV, models.PatternHoriz, models.PatternVert}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(grid(tt.card))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Detect(%s) = %v, want %v", tt.card, got, tt.want)
			}
		})
	}
}

func TestDetect_OrderIsFixed(t *testing.T) {
	// Every subset of the card must list codes in the canonical order
	rank := map[models.PatternCode]int{}
	for i, p := range Definitions() {
		rank[p.Code] = i
	}

	for mask := 0; mask < 1<<9; mask++ {
		var g Grid
		for i := 0; i < 9; i++ {
			g[i/3][i%3] = mask&(1<<i) != 0
		}
		codes := Detect(g)
		for i := 1; i < len(codes); i++ {
			if rank[codes[i-1]] >= rank[codes[i]] {
				t.Fatalf("mask %09b: codes out of order: %v", mask, codes)
			}
		}
	}
}

func TestDetect_XNeedsCenter(t *testing.T) {
	for mask := 0; mask < 1<<9; mask++ {
		var g Grid
		for i := 0; i < 9; i++ {
			g[i/3][i%3] = mask&(1<<i) != 0
		}
		if !g[1][1] && Matches(g, models.PatternX) {
			t.Fatalf("mask %09b: X matched without the center", mask)
		}
		if Matches(g, models.PatternO) && !(Matches(g, models.PatternHoriz) && Matches(g, models.PatternVert)) {
			t.Fatalf("mask %09b: O without both lines", mask)
		}
	}
}

func tasks(ids ...int64) []models.Task {
	out := make([]models.Task, len(ids))
	for i, id := range ids {
		out[i] = models.Task{ID: id, Points: 10}
	}
	return out
}

func TestBuildGrid_RowMajorByID(t *testing.T) {
	// Catalog deliberately unsorted
	catalog := tasks(9, 3, 1, 7, 5, 2, 8, 4, 6)
	completed := map[int64]bool{1: true, 2: true, 3: true, 5: true}

	g := BuildGrid(completed, catalog)

	want := grid("xxx.x....")
	if g != want {
		t.Errorf("BuildGrid = %v, want %v", g, want)
	}
}

func TestBuildGrid_IgnoresTasksBeyondCard(t *testing.T) {
	catalog := tasks(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)
	completed := map[int64]bool{10: true, 11: true}

	if g := BuildGrid(completed, catalog); g.Count() != 0 {
		t.Errorf("expected tasks 10 and 11 to be off the card, got %d cells", g.Count())
	}
}

func TestBuildGrid_ShortCatalog(t *testing.T) {
	catalog := tasks(4, 5)
	g := BuildGrid(map[int64]bool{4: true, 5: true}, catalog)

	if !g[0][0] || !g[0][1] || g.Count() != 2 {
		t.Errorf("unexpected grid for short catalog: %v", g)
	}
	if codes := Detect(g); len(codes) != 0 {
		t.Errorf("expected no patterns, got %v", codes)
	}
}

func TestBuildGrid_DoesNotMutateCatalog(t *testing.T) {
	catalog := tasks(3, 1, 2)
	BuildGrid(nil, catalog)

	if catalog[0].ID != 3 || catalog[1].ID != 1 || catalog[2].ID != 2 {
		t.Errorf("catalog order changed: %v", catalog)
	}
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	if len(defs) != 6 {
		t.Fatalf("expected 6 definitions, got %d", len(defs))
	}

	bonus := map[models.PatternCode]int{
		models.PatternO: 35, models.PatternH: 35, models.PatternV: 35, models.PatternX: 35,
		models.PatternHoriz: 5, models.PatternVert: 5,
	}
	for _, d := range defs {
		if d.BonusPoints != bonus[d.Code] {
			t.Errorf("%s: expected bonus %d, got %d", d.Code, bonus[d.Code], d.BonusPoints)
		}
		if d.Name == "" {
			t.Errorf("%s: missing name", d.Code)
		}
	}

	if _, ok := Definition("Z"); ok {
		t.Error("expected unknown code to be missing")
	}
}
