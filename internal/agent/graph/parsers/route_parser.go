package parsers

import (
	"strings"

	"github.com/digital-twin-core/server/internal/agent/model"
	logx "github.com/digital-twin-core/server/pkg/logger"
)

// basic safety limits to avoid pathological model outputs
const (
	maxContentLen = 32 * 1024 // 32KB
	maxNoteLen    = 500
)

// ParseRoute converts raw router-model output into a RoutingDecision.
// It never fails: anything that does not resolve to a known category is
// coerced to unanswerable here, so downstream stages only ever see the
// closed set.
//
// Expected format:
//
//	ROUTE: [linkedin|github|medium|unanswerable]
//	REASON: one short sentence
func ParseRoute(content string) model.RoutingDecision {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "route_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("router output truncated due to size limit")
		content = content[:maxContentLen]
	}

	decision := model.RoutingDecision{Category: model.CategoryUnanswerable}
	routeSeen := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "ROUTE:") && !routeSeen:
			routeSeen = true
			token := cleanToken(line[len("ROUTE:"):])
			if cat, ok := model.ParseCategory(token); ok {
				decision.Category = cat
			} else {
				decision.Category = pickByPriority(token)
				if decision.Category == model.CategoryUnanswerable {
					logx.Warn().
						Str("component", "route_parser").
						Str("token", safeSnippet(token)).
						Msg("unrecognized route token coerced to unanswerable")
				}
			}
		case strings.HasPrefix(upper, "REASON:") && decision.Note == "":
			note := strings.TrimSpace(line[len("REASON:"):])
			if len(note) > maxNoteLen {
				note = note[:maxNoteLen]
			}
			decision.Note = note
		}
	}

	if !routeSeen {
		// No ROUTE line at all. Last resort: look for a category mention
		// anywhere in the output, in fixed priority order.
		decision.Category = pickByPriority(content)
		decision.Note = "router output did not follow the expected format"
	}

	return decision
}

// cleanToken strips brackets, markdown and punctuation around the route value.
func cleanToken(s string) string {
	return strings.Trim(strings.TrimSpace(s), "[]()*`'\". ")
}

// pickByPriority returns the highest-priority category mentioned in s, or
// unanswerable when none is. The fixed order keeps routing deterministic
// when the model names more than one source.
func pickByPriority(s string) model.Category {
	s = strings.ToLower(s)
	for _, cat := range model.CategoryPriority {
		if strings.Contains(s, cat.String()) {
			return cat
		}
	}
	return model.CategoryUnanswerable
}

func safeSnippet(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max]
}
