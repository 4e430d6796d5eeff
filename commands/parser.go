package commands

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the typed result of parsing one inbound message. Exactly one
// variant is produced per input; Help is the catch-all.
type Intent interface{ isIntent() }

type Login struct{}

type ListIssues struct{}

type LogWork struct {
	IssueKey  string
	Hours     float64
	StartedAt string
}

type ListTransitions struct {
	IssueKey string
}

type ApplyTransition struct {
	IssueKey     string
	TransitionID string
}

type Help struct{}

func (Login) isIntent()           {}
func (ListIssues) isIntent()      {}
func (LogWork) isIntent()         {}
func (ListTransitions) isIntent() {}
func (ApplyTransition) isIntent() {}
func (Help) isIntent()            {}

// Worklog timestamps carry a fixed UTC-3 offset; Jira expects this exact
// format and the deployment's tenant is configured for it.
const workTimeOffset = "-0300"

var (
	mentionRe = regexp.MustCompile(`<at[^>]*>.*?</at>`)
	logWorkRe = regexp.MustCompile(`(?i)lan(?:c|ç)ar\s+(?P<hours>\d+(?:[.,]\d+)?)h.*?\b(?P<issue>[a-z0-9]+-\d+)\b.*?(?P<date>\d{4}-\d{2}-\d{2}).*?(?P<time>\d{2}:\d{2})`)
	statusRe  = regexp.MustCompile(`(?i)^status\s+(?P<issue>[a-z0-9]+-\d+)`)
	moveRe    = regexp.MustCompile(`(?i)^mover\s+(?P<issue>[a-z0-9]+-\d+)\s+(?P<id>\d+)`)
)

// Parse converts free text into an Intent. Mention markup and surrounding
// whitespace are stripped first; matching is case-insensitive and the first
// matching rule wins, in this order: login, list, worklog, status, move.
func Parse(text string) Intent {
	text = strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(lower, "login"):
		return Login{}
	case strings.HasPrefix(lower, "minhas demandas"), strings.HasPrefix(lower, "listar"):
		return ListIssues{}
	}

	if g := namedGroups(logWorkRe, text); g != nil {
		hours, err := strconv.ParseFloat(strings.ReplaceAll(g["hours"], ",", "."), 64)
		if err == nil {
			return LogWork{
				IssueKey:  strings.ToUpper(g["issue"]),
				Hours:     hours,
				StartedAt: g["date"] + "T" + g["time"] + ":00.000" + workTimeOffset,
			}
		}
	}

	if g := namedGroups(statusRe, text); g != nil {
		return ListTransitions{IssueKey: strings.ToUpper(g["issue"])}
	}

	if g := namedGroups(moveRe, text); g != nil {
		return ApplyTransition{
			IssueKey:     strings.ToUpper(g["issue"]),
			TransitionID: g["id"],
		}
	}

	return Help{}
}

func namedGroups(re *regexp.Regexp, text string) map[string]string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" {
			out[name] = m[i]
		}
	}
	return out
}
