package docconvert

import "testing"

func TestMessageIDDeterministic(t *testing.T) {
	a := MessageID("https://example.com/a.pdf", "r1")
	if a != MessageID("https://example.com/a.pdf", "r1") {
		t.Fatalf("MessageID not stable")
	}
	if a == MessageID("https://example.com/a.pdf", "r2") {
		t.Fatalf("MessageID ignores revision")
	}
	if len(a) != 64 {
		t.Fatalf("MessageID length: want=64 got=%d", len(a))
	}
}

func TestDecodeReply(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"text", `{"text":"hello"}`, "hello", false},
		{"remote error", `{"error":"unsupported format"}`, "", true},
		{"garbage", `not json`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeReply([]byte(tc.body))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err: want=%v got=%v", tc.wantErr, err)
			}
			if got != tc.want {
				t.Fatalf("text: want=%q got=%q", tc.want, got)
			}
		})
	}
}
