package coaching

import (
	"strconv"
	"strings"

	"github.com/ashureev/motion-coach/internal/motion"
)

// Templates use {n} for the rep, swing or check number.
var (
	setupTemplates = []string{
		"Step back until your whole body is in frame, then settle into your starting position.",
	}

	jumpingJackTemplates = []string{
		"Rep {n} completed! Keep your arms straight overhead.",
		"Good jack #{n}! Land softer on your feet next time.",
		"Rep {n} done! Sync your arm and leg movements better.",
		"Jack #{n} complete! Jump higher and spread legs wider.",
		"Rep {n} finished! Keep your core tight throughout.",
	}

	fallbackTemplates = map[Strategy][]string{
		StrategyRepGroups: {
			"Rep {n} completed! Keep your core braced through the whole movement.",
			"Good rep #{n}! Control the lowering phase instead of dropping into it.",
			"Rep {n} done! Keep a steady rhythm between reps.",
			"Rep #{n} complete! Work through your full range of motion.",
			"Rep {n} finished! Breathe out as you drive through the hard part.",
		},
		StrategyPerSwing: {
			"Swing {n} logged. Finish balanced with your chest facing the target.",
			"Swing #{n}: keep your head still through contact.",
			"Swing {n} done. Let your hips lead the turn, then the arms.",
			"Swing #{n}: complete the follow-through before resetting.",
		},
		StrategyPerAttempt: {
			"Shot {n}: hold your follow-through until the ball lands.",
			"Shot #{n}: keep your shooting elbow under the ball.",
			"Shot {n}: bend your knees and shoot on the way up.",
			"Shot #{n}: square your feet and shoulders to the rim.",
		},
		StrategyContinuousHold: {
			"Hold strong. Keep a straight line from shoulders to hips.",
			"Stay tight. Squeeze your glutes and keep breathing.",
			"Keep holding. Don't let your hips sag or pike.",
		},
		StrategyGeneral: {
			"Movement {n} recorded. Keep it smooth and controlled.",
			"Nice work on movement #{n}. Stay balanced through each rep.",
			"Movement {n} done. Focus on steady breathing.",
		},
	}
)

// Fallback returns the deterministic heuristic text for a completed unit
// count. It cycles templates by repCount and skips a template that would
// repeat last verbatim.
func Fallback(kind motion.Kind, strategy Strategy, repCount int, last string) string {
	templates := templatesFor(kind, strategy)

	idx := 0
	if repCount > 0 {
		idx = (repCount - 1) % len(templates)
	}
	text := render(templates[idx], repCount)
	if text == last && len(templates) > 1 {
		text = render(templates[(idx+1)%len(templates)], repCount)
	}
	return text
}

// SetupFallback is the orientation text used when analysis is unavailable.
func SetupFallback() string {
	return setupTemplates[0]
}

func templatesFor(kind motion.Kind, strategy Strategy) []string {
	if kind == motion.KindJumpingJack {
		return jumpingJackTemplates
	}
	if t, ok := fallbackTemplates[strategy]; ok {
		return t
	}
	return fallbackTemplates[StrategyGeneral]
}

func render(tmpl string, n int) string {
	return strings.ReplaceAll(tmpl, "{n}", strconv.Itoa(n))
}
