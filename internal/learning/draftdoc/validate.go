package draftdoc

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

var codeFenceRe = regexp.MustCompile("(?s)^```[A-Za-z0-9_+#.-]*[ \t]*\n.*\n```$")

func checkStruct(v any, is *issues) {
	err := structValidator.Struct(v)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		is.addf("%v", err)
		return
	}
	for _, fe := range verrs {
		if fe.Param() != "" {
			is.addf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			is.addf("%s failed %s", fe.Namespace(), fe.Tag())
		}
	}
}

// denseOrders reports whether orders is a permutation of 1..len(orders).
func denseOrders(orders []int) bool {
	sorted := append([]int(nil), orders...)
	sort.Ints(sorted)
	for i, o := range sorted {
		if o != i+1 {
			return false
		}
	}
	return true
}

// ValidateComposition checks a composition against the requested bounds.
// lessonsPerTopic > 0 requires exactly that many outlines per topic.
func ValidateComposition(c Composition, maxTopics, lessonsPerTopic int) error {
	is := &issues{subject: "composition"}
	checkStruct(c, is)

	if n := len(c.Topics); n < 1 || (maxTopics > 0 && n > maxTopics) {
		is.addf("topic count %d outside [1, %d]", n, maxTopics)
	}

	names := make(map[string]int, len(c.Topics))
	for i, t := range c.Topics {
		key := NormalizeName(t.Name)
		if key == "" {
			continue
		}
		if prev, dup := names[key]; dup {
			is.addf("topics[%d] duplicates topics[%d] name %q", i, prev, t.Name)
			continue
		}
		names[key] = i
	}

	for i, t := range c.Topics {
		if len(t.Skills) == 0 {
			is.addf("topics[%d] %q has no skills", i, t.Name)
		}
		self := NormalizeName(t.Name)
		for _, p := range t.Prerequisites {
			pk := NormalizeName(p)
			if pk == "" {
				continue
			}
			if pk == self {
				is.addf("topics[%d] %q lists itself as prerequisite", i, t.Name)
				continue
			}
			if _, ok := names[pk]; !ok {
				is.addf("topics[%d] %q prerequisite %q is not a topic in this composition", i, t.Name, p)
			}
		}
		if lessonsPerTopic > 0 && len(t.LessonOutlines) != lessonsPerTopic {
			is.addf("topics[%d] %q has %d lesson_outlines, want %d", i, t.Name, len(t.LessonOutlines), lessonsPerTopic)
		}
		orders := make([]int, 0, len(t.LessonOutlines))
		for _, o := range t.LessonOutlines {
			orders = append(orders, o.Order)
		}
		if !denseOrders(orders) {
			is.addf("topics[%d] %q lesson_outlines order %v is not dense 1..%d", i, t.Name, orders, len(orders))
		}
	}
	return is.err()
}

// ValidateLesson checks one generated lesson. priorTitles are titles of
// lessons already produced for the same topic.
func ValidateLesson(l LessonDoc, priorTitles []string) error {
	is := &issues{subject: fmt.Sprintf("lesson %q", l.Title)}
	checkStruct(l, is)

	title := NormalizeName(l.Title)
	for _, p := range priorTitles {
		if title != "" && NormalizeName(p) == title {
			is.addf("title duplicates an earlier lesson %q", p)
		}
	}

	hasText := false
	orders := make([]int, 0, len(l.Sections))
	for i, s := range l.Sections {
		orders = append(orders, s.Order)
		switch s.Type {
		case "text":
			if strings.TrimSpace(s.Content) != "" {
				hasText = true
			}
		case "code":
			if !codeFenceRe.MatchString(strings.TrimSpace(s.Content)) {
				is.addf("sections[%d] code content is not a fenced code block", i)
			}
		case "image":
			if strings.TrimSpace(s.Content) == "" {
				is.addf("sections[%d] image has no content", i)
			}
		case "quiz":
			if len(s.Options) < 2 {
				is.addf("sections[%d] quiz needs at least 2 options", i)
			}
			if strings.TrimSpace(s.Answer) == "" {
				is.addf("sections[%d] quiz has no answer", i)
			} else if !containsFold(s.Options, s.Answer) {
				is.addf("sections[%d] quiz answer %q is not one of the options", i, s.Answer)
			}
		}
	}
	if !hasText {
		is.addf("lesson needs at least one non-empty text section")
	}
	if !denseOrders(orders) {
		is.addf("section order %v is not dense 1..%d", orders, len(orders))
	}

	for i, e := range l.Exercises {
		if e.Executable && len(e.TestCases) == 0 {
			is.addf("exercises[%d] %q is executable but has no test cases", i, e.Title)
		}
	}
	return is.err()
}

// DifficultyMix is the number of questions wanted per difficulty.
type DifficultyMix struct {
	Easy   int
	Medium int
	Hard   int
}

// ValidateTest checks a generated test. skills maps normalized skill names to
// their topic name; every question must target one of them. A non-nil mix
// must match the per-difficulty tallies exactly.
func ValidateTest(t TestDoc, skills map[string]string, wantQuestions int, mix *DifficultyMix) error {
	is := &issues{subject: "test"}
	checkStruct(t, is)
	if wantQuestions > 0 && len(t.Questions) != wantQuestions {
		is.addf("expected %d questions, got %d", wantQuestions, len(t.Questions))
	}
	if mix != nil {
		var got DifficultyMix
		for _, q := range t.Questions {
			switch q.Difficulty {
			case "easy":
				got.Easy++
			case "medium":
				got.Medium++
			case "hard":
				got.Hard++
			}
		}
		if got != *mix {
			is.addf("difficulty mix easy/medium/hard = %d/%d/%d, want %d/%d/%d",
				got.Easy, got.Medium, got.Hard, mix.Easy, mix.Medium, mix.Hard)
		}
	}
	for i, q := range t.Questions {
		if _, ok := skills[NormalizeName(q.Skill)]; !ok {
			is.addf("questions[%d] skill %q is not a course skill", i, q.Skill)
		}
		if q.Type == "multiple_choice" {
			if len(q.Options) < 2 {
				is.addf("questions[%d] multiple_choice needs at least 2 options", i)
			} else if !containsFold(q.Options, q.Answer) {
				is.addf("questions[%d] answer is not one of the options", i)
			}
		}
	}
	return is.err()
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
