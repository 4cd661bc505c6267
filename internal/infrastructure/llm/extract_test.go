package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "bare object",
			reply: `{"score": 85}`,
			want:  `{"score": 85}`,
		},
		{
			name:  "json fence",
			reply: "```json\n{\"score\": 85}\n```",
			want:  `{"score": 85}`,
		},
		{
			name:  "anonymous fence",
			reply: "```\n[{\"user_id\":\"u1\"}]\n```",
			want:  `[{"user_id":"u1"}]`,
		},
		{
			name:  "object wrapped in prose",
			reply: `Here is my evaluation: {"score": 70, "failed_reasons": ["too slow"]} hope that helps!`,
			want:  `{"score": 70, "failed_reasons": ["too slow"]}`,
		},
		{
			name:  "array wrapped in prose",
			reply: `The ranking is [90, 70, 40] as requested.`,
			want:  `[90, 70, 40]`,
		},
		{
			name:  "no json at all",
			reply: "I think the submission looks fine overall.",
			want:  "",
		},
		{
			name:  "braces without valid json",
			reply: "the set {a, b, c} is unordered",
			want:  "",
		},
		{
			name:  "empty reply",
			reply: "",
			want:  "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSON(tc.reply); got != tc.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tc.reply, got, tc.want)
			}
		})
	}
}
