package prompts

import "sort"

var schemas = map[string]func() map[string]any{
	"composition":       CompositionSchema,
	"lesson":            LessonSchema,
	"test_bank":         TestBankSchema,
	"weakness_analysis": WeaknessSchema,
}

func object(properties map[string]any) map[string]any {
	required := make([]string, 0, len(properties))
	for k := range properties {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func arrayOf(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func str() map[string]any     { return map[string]any{"type": "string"} }
func integer() map[string]any { return map[string]any{"type": "integer"} }
func boolean() map[string]any { return map[string]any{"type": "boolean"} }

func enum(values ...string) map[string]any {
	arr := make([]any, 0, len(values))
	for _, v := range values {
		arr = append(arr, v)
	}
	return map[string]any{"type": "string", "enum": arr}
}

func CompositionSchema() map[string]any {
	skill := object(map[string]any{"name": str(), "description": str()})
	outline := object(map[string]any{"title": str(), "summary": str(), "order": integer()})
	topic := object(map[string]any{
		"name":            str(),
		"description":     str(),
		"prerequisites":   arrayOf(str()),
		"skills":          arrayOf(skill),
		"lesson_outlines": arrayOf(outline),
	})
	return object(map[string]any{
		"topics":                    arrayOf(topic),
		"duration_estimate_minutes": integer(),
		"description_refined":       str(),
	})
}

func LessonSchema() map[string]any {
	section := object(map[string]any{
		"type":        enum("text", "code", "image", "quiz"),
		"content":     str(),
		"order":       integer(),
		"options":     arrayOf(str()),
		"answer":      str(),
		"explanation": str(),
	})
	testCase := object(map[string]any{"input": str(), "expected_output": str(), "explanation": str()})
	exercise := object(map[string]any{
		"title":         str(),
		"description":   str(),
		"difficulty":    enum("easy", "medium", "hard"),
		"content":       str(),
		"code_template": str(),
		"executable":    boolean(),
		"test_cases":    arrayOf(testCase),
	})
	return object(map[string]any{
		"title":       str(),
		"description": str(),
		"order":       integer(),
		"sections":    arrayOf(section),
		"exercises":   arrayOf(exercise),
	})
}

func TestBankSchema() map[string]any {
	q := object(map[string]any{
		"type":       enum("multiple_choice", "problem"),
		"prompt":     str(),
		"options":    arrayOf(str()),
		"answer":     str(),
		"topic":      str(),
		"skill":      str(),
		"difficulty": enum("easy", "medium", "hard"),
	})
	return object(map[string]any{"title": str(), "questions": arrayOf(q)})
}

func WeaknessSchema() map[string]any {
	s := object(map[string]any{
		"skill_name":              str(),
		"weaknesses":              arrayOf(str()),
		"weakness_analysis":       str(),
		"improvement_suggestions": arrayOf(str()),
	})
	return object(map[string]any{"skills": arrayOf(s)})
}
