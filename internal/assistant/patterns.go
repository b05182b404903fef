package assistant

import (
	"regexp"
	"strings"
)

// Token grammars shared by the cancel patterns.
const (
	clientTok = `([a-z0-9][a-z0-9 '\-]*?)`
	timeTok   = `(\d{1,2}(?::\d{2})?\s*[ap]\.?\s?m\.?|\d{1,2}:?(?:\d{2})?\s*hours?)`
	dateTok   = `([a-z]+\s+\d{1,2}(?:st|nd|rd|th)?)`
	yearTok   = `(?:,?\s+(\d{4}))?`
	lead      = `(?i)^(?:.*?\s)?(?:please\s+)?cancel\s+`
	apptTok   = `(?:the\s+|my\s+)?appointment\s+`
	tail      = `\s*$`
)

type field int

const (
	fieldClient field = iota
	fieldTime
	fieldDate
	fieldYear
)

// cancelPattern is one row of the ordered cancel table. groups lists which
// Cancel field each capture group fills, in order.
type cancelPattern struct {
	name       string
	re         *regexp.Regexp
	confidence float64
	groups     []field
}

func (p cancelPattern) extract(m []string) Cancel {
	c := Cancel{Score: p.confidence}
	for i, f := range p.groups {
		v := strings.TrimSpace(m[i+1])
		switch f {
		case fieldClient:
			c.ClientName = v
		case fieldTime:
			c.Time = v
		case fieldDate:
			c.Date = v
		case fieldYear:
			c.Year = v
		}
	}
	return c
}

// cancelPatterns is evaluated top to bottom and the first match wins, even
// when a later row would score higher.
var cancelPatterns = []cancelPattern{
	{
		name:       "full",
		re:         regexp.MustCompile(lead + apptTok + `for\s+` + clientTok + `\s+at\s+` + timeTok + `\s+on\s+` + dateTok + yearTok + tail),
		confidence: 1.0,
		groups:     []field{fieldClient, fieldTime, fieldDate, fieldYear},
	},
	{
		name:       "possessive",
		re:         regexp.MustCompile(lead + clientTok + `(?:'s)?\s+appointment\s+at\s+` + timeTok + `\s+on\s+` + dateTok + yearTok + tail),
		confidence: 0.9,
		groups:     []field{fieldClient, fieldTime, fieldDate, fieldYear},
	},
	{
		name:       "time_first",
		re:         regexp.MustCompile(lead + apptTok + `at\s+` + timeTok + `\s+on\s+` + dateTok + yearTok + `\s+for\s+` + clientTok + tail),
		confidence: 0.8,
		groups:     []field{fieldTime, fieldDate, fieldYear, fieldClient},
	},
	{
		name:       "date_first",
		re:         regexp.MustCompile(lead + apptTok + `on\s+` + dateTok + yearTok + `\s+at\s+` + timeTok + `\s+for\s+` + clientTok + tail),
		confidence: 0.8,
		groups:     []field{fieldDate, fieldYear, fieldTime, fieldClient},
	},
	{
		name:       "client_time",
		re:         regexp.MustCompile(lead + apptTok + `(?:for\s+)?` + clientTok + `\s+at\s+` + timeTok + tail),
		confidence: 0.7,
		groups:     []field{fieldClient, fieldTime},
	},
	{
		name:       "client_date",
		re:         regexp.MustCompile(lead + apptTok + `(?:for\s+)?` + clientTok + `\s+(?:on\s+)?` + dateTok + yearTok + tail),
		confidence: 0.6,
		groups:     []field{fieldClient, fieldDate, fieldYear},
	},
	{
		name:       "client",
		re:         regexp.MustCompile(lead + apptTok + `(?:for\s+)?` + clientTok + tail),
		confidence: 0.5,
		groups:     []field{fieldClient},
	},
}

var (
	stopRE        = regexp.MustCompile(`\b(?:stop talking|shut up|be quiet|that'?s all)\b`)
	affirmativeRE = regexp.MustCompile(`^(?:yes|confirmed|affirmative)$`)
	trailingRE    = regexp.MustCompile(`[\s.!?]+$`)
)
