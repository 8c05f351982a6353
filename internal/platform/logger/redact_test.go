package logger

import "testing"

func TestRedactorValues(t *testing.T) {
	r := &redactor{enabled: true, salt: "s"}

	cases := []struct {
		name string
		key  string
		val  any
		want any
	}{
		{"secret key", "llm_api_key", "sk-123", redacted},
		{"auth header", "Authorization", "Bearer x", redacted},
		{"jwt value", "note", "eyJhbGciOiJIUzI1.eyJzdWIiOiIxMjM0NTY3.sig", redacted},
		{"plain", "course_id", 42, 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := r.kvs([]any{tc.key, tc.val})
			if out[1] != tc.want {
				t.Fatalf("value: want=%v got=%v", tc.want, out[1])
			}
		})
	}

	out := r.kvs([]any{"user_id", "u-1"})
	got, _ := out[1].(string)
	if len(got) != len("hash:")+12 || got[:5] != "hash:" {
		t.Fatalf("hashed user_id: got=%q", got)
	}
	if again := r.kvs([]any{"user_id", "u-1"})[1]; again != got {
		t.Fatalf("hash not stable: %v vs %v", again, got)
	}
}

func TestRedactorDisabled(t *testing.T) {
	r := &redactor{enabled: false}
	out := r.kvs([]any{"token", "abc"})
	if out[1] != "abc" {
		t.Fatalf("disabled redactor changed value: %v", out[1])
	}
}
