package models

// Label is the correctness classification the model assigns to an answer region.
// The set is closed: anything else in a model reply is a schema violation, not a
// value to be coerced.
type Label string

const (
	LabelCorrect Label = "correct"
	LabelMistake Label = "mistake"
	LabelPartial Label = "partial"
	LabelUnclear Label = "unclear"
)

// Valid reports whether l is one of the four known labels.
func (l Label) Valid() bool {
	switch l {
	case LabelCorrect, LabelMistake, LabelPartial, LabelUnclear:
		return true
	}
	return false
}

// Annotation is one model-reported region of the answer image. Coords are pixel
// coordinates [x_min, y_min, x_max, y_max], origin top-left, measured against
// the original answer image's dimensions.
type Annotation struct {
	Coords [4]int `json:"coords"`
	Color  Label  `json:"color"`
	Note   string `json:"note"`
}

// GradingResult is the validated model assessment. Immutable once parsed.
type GradingResult struct {
	Score       float64      `json:"score"`
	MaxScore    float64      `json:"max_score"`
	Feedback    string       `json:"feedback"`
	Annotations []Annotation `json:"annotations"`
}

// GradingRequest carries everything a single grading attempt sends to the model.
// It is built per attempt and discarded when the call returns.
type GradingRequest struct {
	QuestionImage     []byte
	AnswerImage       []byte
	CurriculumContext []string
	Instructions      string
}

// GradingOutcome is the only artifact the pipeline exposes outward: the parsed
// result plus the annotated answer image. DroppedAnnotations counts annotations
// whose clamped box had zero area and was therefore not drawn.
type GradingOutcome struct {
	Result             GradingResult
	AnnotatedImage     []byte
	DroppedAnnotations int
}
