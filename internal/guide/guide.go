package guide

import (
	"fmt"
	"math"
	"strings"

	"floraroute/internal/engine"
)

// Coord is a geographic position attached to a graph node.
type Coord struct {
	Lat float64
	Lon float64
}

// Waypoint kinds tag what happens at the end node of a step.
const (
	KindVia      = "via"
	KindDelivery = "delivery"
	KindResupply = "resupply"
)

// Instruction is one turn-by-turn step along an expanded route.
type Instruction struct {
	Step       int           `json:"step"`
	From       engine.NodeID `json:"from"`
	To         engine.NodeID `json:"to"`
	Turn       string        `json:"turn"`
	BearingDeg float64       `json:"bearingDeg"`
	Meters     float64       `json:"meters"`
	Kind       string        `json:"kind"`
	Text       string        `json:"text"`
}

// Generator builds driver instructions from an expanded node path using the
// graph's edge lengths and per-node coordinates.
type Generator struct {
	graph  *engine.Graph
	coords map[engine.NodeID]Coord
}

func NewGenerator(g *engine.Graph, coords map[engine.NodeID]Coord) *Generator {
	return &Generator{graph: g, coords: coords}
}

// Guide produces one instruction per consecutive node pair in path. kinds
// optionally tags nodes as delivery or resupply stops; untagged nodes are
// plain via points. A path shorter than two nodes yields no instructions.
func (g *Generator) Guide(path []engine.NodeID, kinds map[engine.NodeID]string) ([]Instruction, error) {
	if len(path) < 2 {
		return nil, nil
	}

	out := make([]Instruction, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		from, to := path[i], path[i+1]

		meters, ok := g.graph.EdgeWeight(from, to)
		if !ok {
			return nil, fmt.Errorf("guide: step %d: no edge %d-%d", i+1, from, to)
		}
		a, ok := g.coords[from]
		if !ok {
			return nil, fmt.Errorf("guide: node %d has no coordinates", from)
		}
		b, ok := g.coords[to]
		if !ok {
			return nil, fmt.Errorf("guide: node %d has no coordinates", to)
		}

		heading := Bearing(a, b)
		turn := "depart"
		if i > 0 {
			prev := g.coords[path[i-1]]
			turn = classifyTurn(turnAngle(Bearing(prev, a), heading))
		}

		kind := KindVia
		if k, ok := kinds[to]; ok {
			kind = k
		}

		out = append(out, Instruction{
			Step:       i + 1,
			From:       from,
			To:         to,
			Turn:       turn,
			BearingDeg: heading,
			Meters:     meters,
			Kind:       kind,
			Text:       stepText(turn, kind, from, to, meters),
		})
	}
	return out, nil
}

func stepText(turn, kind string, from, to engine.NodeID, meters float64) string {
	km := meters / 1000
	seg := fmt.Sprintf("segment %d-%d", from, to)

	var s string
	switch turn {
	case "depart":
		s = fmt.Sprintf("Depart along %s for %.2f km", seg, km)
	case "straight":
		s = fmt.Sprintf("Continue straight along %s for %.2f km", seg, km)
	case "u-turn":
		s = fmt.Sprintf("Make a U-turn onto %s and continue %.2f km", seg, km)
	default:
		s = fmt.Sprintf("Turn %s onto %s and continue %.2f km", turn, seg, km)
	}

	switch kind {
	case KindDelivery:
		s += " to the delivery stop"
	case KindResupply:
		s += " to the resupply point"
	}
	return s
}

// Bearing returns the initial heading from a to b in degrees, 0 = north,
// 90 = east, normalized to [0, 360).
func Bearing(a, b Coord) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	x := math.Sin(dLon) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(a, b Coord) float64 {
	const R = 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return R * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// turnAngle maps two consecutive headings to a signed turn in [-180, 180],
// positive meaning a right turn.
func turnAngle(prev, next float64) float64 {
	return math.Mod(next-prev+540, 360) - 180
}

func classifyTurn(angle float64) string {
	switch {
	case angle >= -20 && angle <= 20:
		return "straight"
	case angle > 20 && angle < 70:
		return "slight right"
	case angle >= 70 && angle <= 110:
		return "right"
	case angle > 110 && angle < 160:
		return "sharp right"
	case angle > -70 && angle < -20:
		return "slight left"
	case angle >= -110 && angle <= -70:
		return "left"
	case angle > -160 && angle < -110:
		return "sharp left"
	default:
		return "u-turn"
	}
}

// RenderText formats an instruction list as a plain-text route sheet.
func RenderText(instructions []Instruction) string {
	var total float64
	for _, inst := range instructions {
		total += inst.Meters
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "ROUTE GUIDE (%d steps, %.2f km)\n\n", len(instructions), total/1000)
	for _, inst := range instructions {
		fmt.Fprintf(&sb, "%3d. %s\n", inst.Step, inst.Text)
	}
	fmt.Fprintf(&sb, "\nEnd of route. Total %.2f km.\n", total/1000)
	return sb.String()
}

// Validate checks instruction consistency: sequential step numbers, chained
// endpoints, nonnegative distances, and (when expectedMeters > 0) a total
// within 5% of the planned route length.
func Validate(instructions []Instruction, expectedMeters float64) error {
	var total float64
	for i, inst := range instructions {
		if inst.Step != i+1 {
			return fmt.Errorf("guide: step %d out of sequence", inst.Step)
		}
		if i > 0 && instructions[i-1].To != inst.From {
			return fmt.Errorf("guide: step %d does not start where step %d ended", inst.Step, inst.Step-1)
		}
		if inst.Meters < 0 {
			return fmt.Errorf("guide: step %d has negative distance", inst.Step)
		}
		total += inst.Meters
	}
	if expectedMeters > 0 {
		diff := math.Abs(total - expectedMeters)
		if diff/expectedMeters > 0.05 {
			return fmt.Errorf("guide: instruction total %.1f m differs from planned %.1f m", total, expectedMeters)
		}
	}
	return nil
}
