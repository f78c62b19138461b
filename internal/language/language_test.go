package language

import "testing"

func TestToISO2(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"  ":        "",
		"en":        "en",
		"ENG":       "en",
		"Spanish":   "es",
		"castilian": "es",
		"fre":       "fr",
		"fra":       "fr",
		"ger":       "de",
		"chi":       "zh",
		"Mandarin":  "zh",
		" hi ":      "hi",
		"nld":       "nl",
		"xx":        "xx",
		"klingon":   "",
	}
	for in, want := range cases {
		if got := ToISO2(in); got != want {
			t.Errorf("ToISO2(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "Unknown"},
		{"ja", "Japanese"},
		{"kor", "Korean"},
		{"ARABIC", "Arabic"},
		{"nl", "Dutch"},
		{"klingon", "KLINGON"},
	}
	for _, tc := range cases {
		if got := DisplayName(tc.in); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSupported(t *testing.T) {
	langs := Supported()
	if len(langs) != 12 {
		t.Fatalf("expected 12 dubbing targets, got %d", len(langs))
	}
	if langs[0].Code != "en" || langs[len(langs)-1].Code != "it" {
		t.Fatalf("unexpected ordering %+v", langs)
	}
	byCode := make(map[string]Info, len(langs))
	for _, info := range langs {
		byCode[info.Code] = info
	}
	if got := byCode["es"]; got.Name != "Spanish" || got.Native != "Español" {
		t.Fatalf("unexpected spanish entry %+v", got)
	}
	if got := byCode["de"]; got.Native != "Deutsch" {
		t.Fatalf("unexpected german entry %+v", got)
	}
}

func TestIsSupported(t *testing.T) {
	for _, code := range []string{"spa", "HI", "português", "Italian"} {
		if !IsSupported(code) {
			t.Errorf("expected %q to be a dubbing target", code)
		}
	}
	for _, code := range []string{"sv", "nld", "", "klingon"} {
		if IsSupported(code) {
			t.Errorf("expected %q to be rejected", code)
		}
	}
}

func TestNativeNameFallsBack(t *testing.T) {
	if got := NativeName(""); got != "Unknown" {
		t.Fatalf("expected Unknown for empty code, got %q", got)
	}
}
