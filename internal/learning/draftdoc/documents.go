package draftdoc

// LessonDoc is the output of one lesson-generation call.
type LessonDoc struct {
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	Order       int           `json:"order"`
	Sections    []SectionDoc  `json:"sections" validate:"required,min=1,dive"`
	Exercises   []ExerciseDoc `json:"exercises" validate:"dive"`
}

type SectionDoc struct {
	Type        string   `json:"type" validate:"required,oneof=text code image quiz"`
	Content     string   `json:"content"`
	Order       int      `json:"order"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

type ExerciseDoc struct {
	Title        string        `json:"title" validate:"required"`
	Description  string        `json:"description"`
	Difficulty   string        `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Content      string        `json:"content"`
	CodeTemplate string        `json:"code_template"`
	Executable   bool          `json:"executable"`
	TestCases    []TestCaseDoc `json:"test_cases" validate:"dive"`
}

type TestCaseDoc struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output" validate:"required"`
	Explanation    string `json:"explanation"`
}

// TestDoc is the output of the test-generation call.
type TestDoc struct {
	Title     string        `json:"title"`
	Questions []QuestionDoc `json:"questions" validate:"required,min=1,dive"`
}

type QuestionDoc struct {
	Type       string   `json:"type" validate:"required,oneof=multiple_choice problem"`
	Prompt     string   `json:"prompt" validate:"required"`
	Options    []string `json:"options"`
	Answer     string   `json:"answer" validate:"required"`
	Topic      string   `json:"topic" validate:"required"`
	Skill      string   `json:"skill" validate:"required"`
	Difficulty string   `json:"difficulty" validate:"required,oneof=easy medium hard"`
}

// WeaknessDoc is the narrative half of a weakness analysis. Severity and
// level are computed, never read from the model.
type WeaknessDoc struct {
	Skills []SkillWeaknessDoc `json:"skills" validate:"dive"`
}

type SkillWeaknessDoc struct {
	SkillName              string   `json:"skill_name" validate:"required"`
	Weaknesses             []string `json:"weaknesses"`
	WeaknessAnalysis       string   `json:"weakness_analysis"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
}
