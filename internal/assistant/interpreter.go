package assistant

import "strings"

// fillerNames are words the permissive client token can swallow when no name
// was given, as in "cancel the appointment at 2 pm on may 3rd".
var fillerNames = map[string]bool{
	"the":         true,
	"my":          true,
	"an":          true,
	"a":           true,
	"this":        true,
	"that":        true,
	"appointment": true,
}

// Interpret classifies utterance. Stop phrases may sit anywhere in the text
// and are checked first, then a bare affirmative, then the cancel table. yearHint fills Cancel.Year when the utterance
// carried no year of its own.
func Interpret(utterance, yearHint string) Intent {
	text := trailingRE.ReplaceAllString(strings.TrimSpace(utterance), "")
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return None{}
	}

	lower := strings.ToLower(text)
	switch {
	case stopRE.MatchString(lower):
		return Stop{}
	case affirmativeRE.MatchString(lower):
		return Affirmative{}
	}

	for _, p := range cancelPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		c := p.extract(m)
		if fillerNames[strings.ToLower(c.ClientName)] {
			continue
		}
		if c.Year == "" && c.Date != "" {
			c.Year = strings.TrimSpace(yearHint)
		}
		return c
	}
	return None{}
}
