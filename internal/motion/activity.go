package motion

import (
	"strings"
)

// Kind is the closed set of activity families the detectors understand.
type Kind int

const (
	KindGeneric Kind = iota
	KindPlank
	KindWallSit
	KindGolf
	KindTennis
	KindBasketball
	KindSquat
	KindPushup
	KindJumpingJack
)

var kindNames = [...]string{
	KindGeneric:     "generic",
	KindPlank:       "plank",
	KindWallSit:     "wall sit",
	KindGolf:        "golf",
	KindTennis:      "tennis",
	KindBasketball:  "basketball",
	KindSquat:       "squat",
	KindPushup:      "pushup",
	KindJumpingJack: "jumping jack",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Activity is a user supplied activity name resolved to its family.
type Activity struct {
	Name string
	Kind Kind
}

// classifier rules in dispatch order; first match wins.
var classifier = []struct {
	kind  Kind
	terms []string
}{
	{KindPlank, []string{"plank"}},
	{KindWallSit, []string{"wall sit"}},
	{KindGolf, []string{"golf"}},
	{KindTennis, []string{"tennis"}},
	{KindBasketball, []string{"basketball"}},
	{KindSquat, []string{"squat"}},
	{KindPushup, []string{"pushup", "push up"}},
	{KindJumpingJack, []string{"jumping jack"}},
}

// Classify resolves an activity name. Unknown names fall into KindGeneric.
func Classify(name string) Activity {
	norm := Normalize(name)
	for _, rule := range classifier {
		for _, term := range rule.terms {
			if strings.Contains(norm, term) {
				return Activity{Name: norm, Kind: rule.kind}
			}
		}
	}
	return Activity{Name: norm, Kind: KindGeneric}
}

// Normalize lower-cases an activity name, maps '-' and '_' to spaces and
// collapses runs of whitespace.
func Normalize(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
