package soundgroups

import (
	"reflect"
	"testing"
)

func TestExpandVersusPattern(t *testing.T) {
	group := SoundGroup{
		Name:         "A vs B",
		ApplyPattern: []PatternRef{{Speaker: "s1", FileCount: 2}},
	}

	expanded := Expand(group)

	if expanded.ApplyPattern != nil {
		t.Fatal("applyPattern not removed")
	}
	want := []VersionGroup{
		{Name: "A", Files: []string{"s1/A 1.mp3", "s1/A 2.mp3"}},
		{Name: "B", Files: []string{"s1/B 1.mp3", "s1/B 2.mp3"}},
	}
	if !reflect.DeepEqual(expanded.VersionGroups, want) {
		t.Fatalf("expanded = %+v, want %+v", expanded.VersionGroups, want)
	}
}

func TestExpandIdempotent(t *testing.T) {
	group := SoundGroup{
		Name:         "ka vs kha",
		ApplyPattern: []PatternRef{{Speaker: "kh", FileCount: 3}, {Speaker: "dl", FileCount: 1}},
	}

	once := Expand(group)
	twice := Expand(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("expand not idempotent:\nonce  = %+v\ntwice = %+v", once, twice)
	}
}

func TestExpandMergesExplicitGroups(t *testing.T) {
	group := SoundGroup{
		Name: "ka",
		VersionGroups: []VersionGroup{
			{Name: "ka", Files: []string{"kh/ka special.mp3", "kh/ka 1.mp3"}},
		},
		ApplyPattern: []PatternRef{{Speaker: "kh", FileCount: 2}},
	}

	expanded := Expand(group)

	if len(expanded.VersionGroups) != 1 {
		t.Fatalf("group count = %d, want 1", len(expanded.VersionGroups))
	}
	want := []string{"kh/ka special.mp3", "kh/ka 1.mp3", "kh/ka 2.mp3"}
	if !reflect.DeepEqual(expanded.VersionGroups[0].Files, want) {
		t.Fatalf("merged files = %v, want %v", expanded.VersionGroups[0].Files, want)
	}
}

func TestExpandWithoutPatternUnchanged(t *testing.T) {
	group := SoundGroup{
		Name:          "explicit only",
		VersionGroups: []VersionGroup{{Name: "x", Files: []string{"s/x 1.mp3"}}},
	}
	if got := Expand(group); !reflect.DeepEqual(got, group) {
		t.Fatalf("pattern-free group changed: %+v", got)
	}
}

func TestCandidateNames(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"vs split", "A vs B", []string{"A", "B"}},
		{"whitespace split", "ka kha ga", []string{"ka", "kha", "ga"}},
		{"parenthetical stripped", "ka (aspirated) vs kha", []string{"ka", "kha"}},
		{"tibetan reduced", "ཀ (ka) vs ཁ (kha)", []string{"ཀ", "ཁ"}},
		{"duplicates dropped", "ka vs ka", []string{"ka"}},
		{"empty results dropped", "() vs ka", []string{"ka"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CandidateNames(tc.input); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("CandidateNames(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestExpandSkipsDegeneratePatterns(t *testing.T) {
	group := SoundGroup{
		Name: "ka",
		ApplyPattern: []PatternRef{
			{Speaker: "", FileCount: 3},
			{Speaker: "kh", FileCount: 0},
		},
	}
	expanded := Expand(group)
	if len(expanded.VersionGroups) != 0 {
		t.Fatalf("expected no version groups, got %+v", expanded.VersionGroups)
	}
	if expanded.ApplyPattern != nil {
		t.Fatal("applyPattern not removed")
	}
}
