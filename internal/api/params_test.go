package api

import "testing"

func TestNumParam(t *testing.T) {
	cases := []struct {
		segment string
		want    bool
	}{
		{"0", true},
		{"42", true},
		{"007", true},
		{"", false},
		{"4a", false},
		{"-1", false},
		{"1.5", false},
	}
	for _, tc := range cases {
		if got := NumParam.Match(tc.segment); got != tc.want {
			t.Errorf("NumParam.Match(%q) = %v, want %v", tc.segment, got, tc.want)
		}
	}
}

func TestHashParam(t *testing.T) {
	valid := "AA5TDLSBOZHPAUOHBSO6YDIKD7EQLRS3DYHDVQ7"
	cases := []struct {
		segment string
		want    bool
	}{
		{valid, true},
		{valid[:38], false},
		{valid + "A", false},
		{"aa5tdlsbozhpauohbso6ydikd7eqlrs3dyhdvq7", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := HashParam.Match(tc.segment); got != tc.want {
			t.Errorf("HashParam.Match(%q) = %v, want %v", tc.segment, got, tc.want)
		}
	}
}

func TestWordParam(t *testing.T) {
	cases := []struct {
		segment string
		want    bool
	}{
		{"away", true},
		{"search_nicks", true},
		{"Away", false},
		{"a-b", false},
		{"", false},
		{"a1", false},
	}
	for _, tc := range cases {
		if got := WordParam.Match(tc.segment); got != tc.want {
			t.Errorf("WordParam.Match(%q) = %v, want %v", tc.segment, got, tc.want)
		}
	}
}

func TestExactParam(t *testing.T) {
	p := ExactParam("start")
	if !p.Match("start") {
		t.Error("ExactParam should match its literal")
	}
	if p.Match("stop") || p.Match("Start") {
		t.Error("ExactParam matched a different segment")
	}
}

func TestRegexParamAnchored(t *testing.T) {
	p := RegexParam("[a-z]+")
	if !p.Match("abc") {
		t.Error("RegexParam should match abc")
	}
	if p.Match("abc1") {
		t.Error("RegexParam should anchor to the full segment")
	}
}
