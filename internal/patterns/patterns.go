// Package patterns maps a player's completed tasks onto the 3x3 bingo card
// and reports which shapes it contains.
package patterns

import (
	"sort"

	"github.com/abrezinsky/ecobingo/internal/models"
)

// Size is the side of the bingo card
const Size = 3

// Grid is a bingo card; Grid[row][col] is true when that cell's task is
// completed. It is a value type, so a Grid is never shared mutably.
type Grid [Size][Size]bool

// order is the fixed evaluation order of Detect
var order = []models.PatternCode{
	models.PatternO,
	models.PatternH,
	models.PatternV,
	models.PatternX,
	models.PatternHoriz,
	models.PatternVert,
}

var definitions = map[models.PatternCode]models.Pattern{
	models.PatternO:     {Code: models.PatternO, Name: "O Pattern", Description: "Complete all cells on the outside edge of the board.", BonusPoints: 35},
	models.PatternH:     {Code: models.PatternH, Name: "H Pattern", Description: "Complete cells in an H pattern.", BonusPoints: 35},
	models.PatternV:     {Code: models.PatternV, Name: "V Pattern", Description: "Complete cells in a V pattern.", BonusPoints: 35},
	models.PatternX:     {Code: models.PatternX, Name: "X Pattern", Description: "Complete cells in an X pattern (corners and center).", BonusPoints: 35},
	models.PatternHoriz: {Code: models.PatternHoriz, Name: "Horizontal Line", Description: "Complete any horizontal line of tasks.", BonusPoints: 5},
	models.PatternVert:  {Code: models.PatternVert, Name: "Vertical Line", Description: "Complete any vertical line of tasks.", BonusPoints: 5},
}

// BuildGrid assigns the first Size*Size catalog tasks, by ascending ID, to
// cells in row-major order. Later tasks are not on the card.
func BuildGrid(completed map[int64]bool, catalog []models.Task) Grid {
	ids := make([]int64, len(catalog))
	for i, t := range catalog {
		ids[i] = t.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var g Grid
	for i, id := range ids {
		if i >= Size*Size {
			break
		}
		g[i/Size][i%Size] = completed[id]
	}
	return g
}

// Detect returns the patterns present in g, always in the order
// O, H, V, X, HORIZ, VERT.
func Detect(g Grid) []models.PatternCode {
	var found []models.PatternCode
	for _, code := range order {
		if Matches(g, code) {
			found = append(found, code)
		}
	}
	return found
}

// Matches reports whether g contains the pattern code
func Matches(g Grid, code models.PatternCode) bool {
	switch code {
	case models.PatternO:
		return g.row(0) && g.row(2) && g[1][0] && g[1][2]
	case models.PatternH:
		return g.corners() && g.row(1)
	case models.PatternV:
		return g[0][0] && g[0][2] && g[1][0] && g[1][2] && g[2][1]
	case models.PatternX:
		return g.corners() && g[1][1]
	case models.PatternHoriz:
		for r := 0; r < Size; r++ {
			if g.row(r) {
				return true
			}
		}
	case models.PatternVert:
		for c := 0; c < Size; c++ {
			if g.col(c) {
				return true
			}
		}
	}
	return false
}

func (g Grid) row(r int) bool {
	for c := 0; c < Size; c++ {
		if !g[r][c] {
			return false
		}
	}
	return true
}

func (g Grid) col(c int) bool {
	for r := 0; r < Size; r++ {
		if !g[r][c] {
			return false
		}
	}
	return true
}

func (g Grid) corners() bool {
	return g[0][0] && g[0][Size-1] && g[Size-1][0] && g[Size-1][Size-1]
}

// Count returns the number of completed cells
func (g Grid) Count() int {
	n := 0
	for r := range g {
		for c := range g[r] {
			if g[r][c] {
				n++
			}
		}
	}
	return n
}

// Definitions lists every pattern with its display text and default bonus,
// in detection order
func Definitions() []models.Pattern {
	out := make([]models.Pattern, 0, len(order))
	for _, code := range order {
		out = append(out, definitions[code])
	}
	return out
}

// Definition returns the default definition of code
func Definition(code models.PatternCode) (models.Pattern, bool) {
	p, ok := definitions[code]
	return p, ok
}
