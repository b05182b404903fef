// Package assistant turns chat utterances into booking commands and runs the
// short confirm-then-cancel dialogue around them.
package assistant

// IntentKind names the variant of an Intent.
type IntentKind string

const (
	KindCancel      IntentKind = "cancel"
	KindAffirmative IntentKind = "affirmative"
	KindStop        IntentKind = "stop"
	KindNone        IntentKind = "none"
)

// Intent is the classified meaning of one utterance. The concrete types are
// Cancel, Affirmative, Stop and None.
type Intent interface {
	Kind() IntentKind
	Confidence() float64
	isIntent()
}

// Cancel asks to cancel an appointment. Fields hold the tokens as the user
// wrote them; empty means the user did not say.
type Cancel struct {
	ClientName string  `json:"clientName"`
	Time       string  `json:"time,omitempty"`
	Date       string  `json:"date,omitempty"`
	Year       string  `json:"year,omitempty"`
	Score      float64 `json:"confidence"`
}

func (Cancel) Kind() IntentKind      { return KindCancel }
func (c Cancel) Confidence() float64 { return c.Score }
func (Cancel) isIntent()             {}

// Affirmative confirms whatever the assistant last asked.
type Affirmative struct{}

func (Affirmative) Kind() IntentKind    { return KindAffirmative }
func (Affirmative) Confidence() float64 { return 1.0 }
func (Affirmative) isIntent()           {}

// Stop ends the conversation.
type Stop struct{}

func (Stop) Kind() IntentKind    { return KindStop }
func (Stop) Confidence() float64 { return 1.0 }
func (Stop) isIntent()           {}

// None means nothing recognizable was said.
type None struct{}

func (None) Kind() IntentKind    { return KindNone }
func (None) Confidence() float64 { return 0 }
func (None) isIntent()           {}
