package model

// Language selects the output language of generated copy.
type Language string

const (
	LanguageDE Language = "DE"
	LanguageEN Language = "EN"
)

// NeuroScores are the four engagement dimensions a concept is tuned for.
type NeuroScores struct {
	PatternInterrupt   int `json:"patternInterrupt" validate:"min=0,max=100"`
	EmotionalIntensity int `json:"emotionalIntensity" validate:"min=0,max=100"`
	CuriosityGap       int `json:"curiosityGap" validate:"min=0,max=100"`
	Scarcity           int `json:"scarcity" validate:"min=0,max=100"`
}

// DefaultTargetScores are used when a brief carries no explicit targets.
var DefaultTargetScores = NeuroScores{
	PatternInterrupt:   70,
	EmotionalIntensity: 70,
	CuriosityGap:       70,
	Scarcity:           50,
}

// Source is a reference a research result was derived from.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// MarketingBrief is the structured input for concept generation. It is
// always embedded in other records, never stored on its own.
type MarketingBrief struct {
	ProductContext string       `json:"productContext"`
	TargetAudience string       `json:"targetAudience"`
	Goal           string       `json:"goal"`
	Speaker        string       `json:"speaker"`
	Language       Language     `json:"language" validate:"omitempty,oneof=DE EN"`
	Sources        []Source     `json:"sources,omitempty"`
	TargetScores   *NeuroScores `json:"targetScores,omitempty" validate:"omitempty"`

	ContentContext string   `json:"contentContext,omitempty"`
	LimbicType     string   `json:"limbicType,omitempty"`
	FocusKeyword   string   `json:"focusKeyword,omitempty"`
	PatternType    string   `json:"patternType,omitempty"`
	RepSystem      string   `json:"repSystem,omitempty"`
	Motivation     string   `json:"motivation,omitempty"`
	DecisionStyle  string   `json:"decisionStyle,omitempty"`
	Presupposition string   `json:"presupposition,omitempty"`
	Chunking       string   `json:"chunking,omitempty"`
	TriggerWords   []string `json:"triggerWords,omitempty" validate:"max=10"`
}

// Scores returns the brief's target scores or the defaults.
func (b MarketingBrief) Scores() NeuroScores {
	if b.TargetScores != nil {
		return *b.TargetScores
	}
	return DefaultTargetScores
}

// ViralConcept is one generated marketing artifact.
type ViralConcept struct {
	Hook         string      `json:"hook"`
	Script       string      `json:"script"`
	Strategy     string      `json:"strategy"`
	VisualPrompt string      `json:"visualPrompt"`
	Scores       NeuroScores `json:"scores"`
}

// ResearchResult is a brief draft extracted from a landing page.
type ResearchResult struct {
	ProductContext string   `json:"productContext"`
	TargetAudience string   `json:"targetAudience"`
	Goal           string   `json:"goal"`
	Speaker        string   `json:"speaker"`
	Sources        []Source `json:"sources"`
}
