package pipeline

import "testing"

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "phone gets area code parens",
			input: "Call 520-838-2571 to redeem",
			want:  "Call (520) 838-2571 to redeem",
		},
		{
			name:  "space before period stripped",
			input: "Enjoy our services .",
			want:  "Enjoy our services.",
		},
		{
			name:  "space before comma stripped",
			input: "wine , cheese and bread",
			want:  "wine, cheese and bread",
		},
		{
			name:  "missing space after sentence end",
			input: "Thank you!Lounge access included",
			want:  "Thank you! Lounge access included",
		},
		{
			name:  "missing space after closing paren",
			input: "(2 bottles)each month",
			want:  "(2 bottles) each month",
		},
		{
			name:  "runs of spaces collapsed",
			input: "a   b",
			want:  "a b",
		},
		{
			name:  "newlines untouched",
			input: "First paragraph.\n\nSecond paragraph.",
			want:  "First paragraph.\n\nSecond paragraph.",
		},
		{
			name:  "fixes apply per line",
			input: "line one .\nline   two",
			want:  "line one.\nline two",
		},
		{
			name:  "digits after period left alone",
			input: "a 3.5 oz pour",
			want:  "a 3.5 oz pour",
		},
		{
			name:  "longer digit runs are not phones",
			input: "serial 1520-838-2571",
			want:  "serial 1520-838-2571",
		},
		{
			name:  "everything at once",
			input: "Visit us !Call 520-838-2571  today .",
			want:  "Visit us! Call (520) 838-2571 today.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeText(tc.input)
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
