package route

import (
	"fmt"
	"strings"
)

// Distance thresholds (meters) for the filtering stage.
const (
	minStepM        = 8
	minNamedCoreM   = 20
	minUnnamedCoreM = 45
	minGenericNameM = 140
	minNonCoreM     = 220
	maxZigZagLegM   = 70
)

const arrivalInstruction = "You have arrived back at your starting point."

// genericNameTokens mark path names that carry no routing value for the
// user ("turn left onto the walkway" reads worse than the raw instruction).
var genericNameTokens = []string{
	"walkway", "crosswalk", "sidewalk", "path", "trail",
	"footway", "pedestrian", "steps", "stair", "bridge",
}

// coreManeuvers are the maneuver types that mark real decision points.
var coreManeuvers = map[string]struct{}{
	"depart":          {},
	"arrive":          {},
	"turn":            {},
	"fork":            {},
	"merge":           {},
	"roundabout":      {},
	"rotary":          {},
	"roundabout turn": {},
	"end of road":     {},
}

// Simplify converts a raw maneuver list into a short, de-duplicated sequence
// of display-ready directions. The input is never mutated. Lists of two or
// fewer steps pass through unchanged.
func Simplify(steps []RawStep) []FinalStep {
	if len(steps) <= 2 {
		out := make([]FinalStep, len(steps))
		for i, s := range steps {
			out[i] = passThrough(s)
		}
		return out
	}

	// Stage 1+2: reword every step, then keep the first and last and the
	// interior steps that carry real information.
	worded := make([]FinalStep, 0, len(steps))
	for i, s := range steps {
		if i > 0 && i < len(steps)-1 && !keepInterior(s) {
			continue
		}
		worded = append(worded, wordStep(s))
	}

	// Stage 3: fold duplicates and opposite zig-zags into their predecessor.
	out := make([]FinalStep, 0, len(worded))
	for _, cur := range worded {
		if len(out) > 0 {
			prev := &out[len(out)-1]

			if strings.EqualFold(prev.Instruction, cur.Instruction) &&
				prev.Type == cur.Type && prev.Modifier == cur.Modifier {
				prev.DistanceM += cur.DistanceM
				prev.DurationS += cur.DurationS
				continue
			}

			if isOppositeZigZag(*prev, cur) {
				prev.DistanceM += cur.DistanceM
				prev.DurationS += cur.DurationS
				prev.Instruction = "Continue straight."
				prev.Type = ""
				prev.Modifier = ""
				prev.Name = ""
				continue
			}
		}
		out = append(out, cur)
	}

	return out
}

func passThrough(s RawStep) FinalStep {
	instruction := s.Instruction
	if instruction == "" {
		instruction = "Continue"
	}
	return FinalStep{
		Instruction: instruction,
		DistanceM:   s.DistanceM,
		DurationS:   s.DurationS,
		Type:        s.Type,
		Modifier:    s.Modifier,
		Name:        s.Name,
	}
}

// wordStep derives the display instruction for one raw step.
func wordStep(s RawStep) FinalStep {
	out := FinalStep{
		DistanceM: s.DistanceM,
		DurationS: s.DurationS,
		Type:      s.Type,
		Modifier:  s.Modifier,
		Name:      s.Name,
	}

	t := strings.ToLower(s.Type)
	specific := hasSpecificName(s.Name)

	switch {
	case t == "arrive":
		out.Instruction = arrivalInstruction
	case specific && s.Modifier != "" && t == "turn":
		out.Instruction = fmt.Sprintf("Turn %s onto %s.", s.Modifier, s.Name)
	case specific && s.Modifier != "" && (t == "fork" || t == "merge"):
		out.Instruction = fmt.Sprintf("Keep %s onto %s.", s.Modifier, s.Name)
	case specific && s.Modifier != "" && t == "depart":
		out.Instruction = fmt.Sprintf("Head %s on %s.", s.Modifier, s.Name)
	case specific && !strings.Contains(strings.ToLower(s.Instruction), strings.ToLower(s.Name)):
		base := s.Instruction
		if base == "" {
			base = "Continue"
		}
		out.Instruction = fmt.Sprintf("%s onto %s", base, s.Name)
	case s.Instruction != "":
		out.Instruction = s.Instruction
	default:
		out.Instruction = "Continue"
	}

	return out
}

// keepInterior decides whether a mid-route step survives filtering.
// Interior depart/arrive steps only mark multi-waypoint boundaries and are
// always dropped. Generic-named core maneuvers are retained so the zig-zag
// collapse can see them.
func keepInterior(s RawStep) bool {
	t := strings.ToLower(s.Type)
	if t == "depart" || t == "arrive" {
		return false
	}
	if s.DistanceM < minStepM {
		return false
	}

	core := isCoreManeuver(t)
	specific := hasSpecificName(s.Name)

	if core {
		if specific {
			return s.DistanceM >= minNamedCoreM
		}
		if s.Name != "" {
			return true
		}
		return s.DistanceM >= minUnnamedCoreM
	}

	if s.Name != "" && !specific {
		return s.DistanceM >= minGenericNameM
	}
	return s.DistanceM >= minNonCoreM
}

// isOppositeZigZag reports whether prev and cur form a short left/right
// (or right/left) pair on generic or unnamed paths. Such pairs are not a
// real, describable turn and collapse into "Continue straight."
func isOppositeZigZag(prev, cur FinalStep) bool {
	if !strings.EqualFold(prev.Type, "turn") || !strings.EqualFold(cur.Type, "turn") {
		return false
	}
	prevDir := turnDirection(prev.Modifier)
	curDir := turnDirection(cur.Modifier)
	if prevDir == "" || curDir == "" || prevDir == curDir {
		return false
	}
	if prev.DistanceM > maxZigZagLegM || cur.DistanceM > maxZigZagLegM {
		return false
	}
	return !hasSpecificName(prev.Name) && !hasSpecificName(cur.Name)
}

func turnDirection(modifier string) string {
	m := strings.ToLower(modifier)
	switch {
	case strings.Contains(m, "left"):
		return "left"
	case strings.Contains(m, "right"):
		return "right"
	default:
		return ""
	}
}

func isCoreManeuver(maneuverType string) bool {
	t := strings.ToLower(maneuverType)
	if _, ok := coreManeuvers[t]; ok {
		return true
	}
	return strings.Contains(t, "turn")
}

func isGenericName(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range genericNameTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func hasSpecificName(name string) bool {
	return name != "" && !isGenericName(name)
}
