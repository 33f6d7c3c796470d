// Package risk assigns a risk tier to free-form request text.
package risk

import (
	"strings"

	"github.com/harunnryd/opsgate/internal/policy"
)

type tier struct {
	risk     policy.Risk
	keywords []string
}

// Ordered from most to least severe. The first tier with a match wins.
var tiers = []tier{
	{policy.R3, []string{"wipe", "purge", "delete all", "drop database", "destroy", "format disk"}},
	{policy.R2, []string{"prod deploy", "production deploy", "ingress change", "schema migration"}},
	{policy.R1, []string{"restart", "scale", "patch", "update dependency", "upgrade"}},
}

// Classify returns explicit when set, otherwise the keyword-derived tier.
func Classify(text string, explicit *policy.Risk) policy.Risk {
	if explicit != nil {
		return *explicit
	}
	r, _ := Explain(text)
	return r
}

// Explain returns the keyword-derived tier and the keyword that matched.
// The keyword is empty for R0.
func Explain(text string) (policy.Risk, string) {
	lowered := strings.ToLower(text)
	for _, t := range tiers {
		for _, keyword := range t.keywords {
			if strings.Contains(lowered, keyword) {
				return t.risk, keyword
			}
		}
	}
	return policy.R0, ""
}
