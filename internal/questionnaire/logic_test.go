package questionnaire

import "testing"

func TestParseNumericRange(t *testing.T) {
	cases := []struct {
		in       string
		min, max int
		ok       bool
	}{
		{"0-20", 0, 20, true},
		{" 5 - 10 ", 5, 10, true},
		{"10-5", 5, 10, true},
		{"20", 0, 0, false},
		{"a-b", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		min, max, ok := ParseNumericRange(tc.in)
		if min != tc.min || max != tc.max || ok != tc.ok {
			t.Fatalf("ParseNumericRange(%q) = %d,%d,%v", tc.in, min, max, ok)
		}
	}
}

func TestResolveNumericDefault(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	if got := ResolveNumericDefault(0, 20, nil); got != 10 {
		t.Fatalf("nil default should be the midpoint, got %d", got)
	}
	if got := ResolveNumericDefault(0, 20, f(7.4)); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := ResolveNumericDefault(0, 20, f(7.5)); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
	if got := ResolveNumericDefault(0, 20, f(-3)); got != 0 {
		t.Fatalf("below range should clamp to min, got %d", got)
	}
	if got := ResolveNumericDefault(0, 20, f(99)); got != 20 {
		t.Fatalf("above range should clamp to max, got %d", got)
	}
}

func TestParseDateWindowInDays(t *testing.T) {
	if got := ParseDateWindowInDays("14"); got != 14 {
		t.Fatalf("expected 14, got %d", got)
	}
	if got := ParseDateWindowInDays(" 30 "); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	if got := ParseDateWindowInDays("soon"); got != 0 {
		t.Fatalf("malformed value should mean no window, got %d", got)
	}
}

func TestSelectionsEqual(t *testing.T) {
	a := []SelectedOption{{OptionID: 1, Value: "x", AnswerKind: KindChoice, NextVariationID: 2}}
	b := []SelectedOption{{OptionID: 1, Value: "x", AnswerKind: KindChoice, NextVariationID: 2}}
	if !SelectionsEqual(a, b) {
		t.Fatalf("identical selections should compare equal")
	}

	c := []SelectedOption{{OptionID: 1, Value: "y", AnswerKind: KindChoice, NextVariationID: 2}}
	if SelectionsEqual(a, c) {
		t.Fatalf("different values should not compare equal")
	}
	if SelectionsEqual(a, nil) {
		t.Fatalf("different lengths should not compare equal")
	}
}
