package robot

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Point is a saved posture. Points are replaced, never edited in place.
type Point struct {
	ID      string  `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Posture Posture `json:"angles" yaml:"angles"`
}

// NewPoint creates a point with a fresh identifier.
func NewPoint(name string, p Posture) Point {
	return Point{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(name),
		Posture: p.Clamped(),
	}
}

// Label returns the display name, falling back to "<PREFIX> <n>" for
// unnamed points, where n is the 1-based position in its list.
func (p Point) Label(prefix string, index int) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return fmt.Sprintf("%s %d", strings.ToUpper(prefix), index+1)
}
