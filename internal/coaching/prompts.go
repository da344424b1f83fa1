package coaching

import (
	"fmt"
	"strings"

	"github.com/ashureev/motion-coach/internal/motion"
)

const coachContext = `You are a world-class coach analyzing live video of an athlete.
Give specific, actionable feedback like a top personal trainer would.
Focus on what they did right or wrong in that exact movement, the correction for the next one, and safety.
Keep responses brief (1-2 sentences), direct and expert-level.`

var personas = map[motion.Kind]string{
	motion.KindBasketball: `You coach NBA shooters.
Check shooting form (elbow alignment, follow-through, arc), footwork and balance, and release consistency.
Watch for elbow flare, off-balance shots and a flat arc.`,
	motion.KindSquat: `You coach world-record powerlifters.
Check depth (hip crease below knee), knee tracking, a neutral spine with chest up, and hip drive.
Watch for knee cave, forward lean, heel rise and shallow reps.`,
	motion.KindPushup: `You are a military fitness instructor.
Check a straight line from head to heels, chest depth, elbows near 45 degrees, and core engagement.
Watch for sagging or piked hips, partial range and flared elbows.`,
	motion.KindJumpingJack: `You are a conditioning coach.
Check full arm extension overhead, leg spread, soft landings and rhythm between arms and legs.`,
	motion.KindTennis: `You coach touring tennis professionals.
Check preparation, a low-to-high swing path, contact point, footwork and a complete follow-through.`,
	motion.KindGolf: `You coach major-winning golfers.
Check setup and alignment, backswing rotation, downswing sequence and weight transfer, and a balanced finish.`,
	motion.KindPlank: `You are a core strength specialist.
Check a straight line from shoulders to ankles, hip height, neck position and breathing.`,
	motion.KindWallSit: `You are a lower-body endurance coach.
Check thighs parallel to the floor, knees over ankles, back flat against the wall.`,
}

const genericPersona = `You are a movement specialist who has trained athletes across all sports.
Assess movement quality, efficiency, safety and technique.`

func personaFor(kind motion.Kind) string {
	if p, ok := personas[kind]; ok {
		return p
	}
	return genericPersona
}

// BuildPrompt assembles the analysis prompt for a fired decision.
func BuildPrompt(activity motion.Activity, strategy Strategy, d Decision, repCount, frameCount int) string {
	var b strings.Builder
	b.WriteString(coachContext)
	b.WriteString("\n\n")
	b.WriteString(personaFor(activity.Kind))
	b.WriteString("\n\n")

	name := activity.Name
	if name == "" {
		name = "their exercise"
	}

	switch {
	case d.FeedbackType == FeedbackSetup:
		fmt.Fprintf(&b, "The athlete is about to start %s. Give expert setup instructions for stance, grip and position before they begin.\n", name)
		b.WriteString("Do not give generic template advice.")

	case d.Batch:
		fmt.Fprintf(&b, "You are analyzing %d frames covering the most recent reps of %s. The athlete has completed %d reps in total.\n", frameCount, name, repCount)
		b.WriteString("Identify the single most important form correction and give one concise, actionable tip (15-20 words).\n")
		b.WriteString("Focus on the biggest mistake. Do not praise good form or use generic encouragement. Frame it for the next set.")

	case strategy == StrategyContinuousHold:
		fmt.Fprintf(&b, "The athlete is holding a %s. Check their position in this frame and give one correction to keep the hold solid.", name)

	case strategy == StrategyPerSwing:
		fmt.Fprintf(&b, "The athlete just finished swing #%d. Name one thing to fix in that swing and what to focus on for the next one.", repCount)

	case strategy == StrategyPerAttempt:
		fmt.Fprintf(&b, "The athlete just took attempt #%d. Name one thing to fix in that attempt and what to focus on for the next one.", repCount)

	default:
		fmt.Fprintf(&b, "The athlete just completed movement #%d of %s. Tell them what they did wrong, if anything, and what to focus on next.", repCount, name)
	}
	return b.String()
}
