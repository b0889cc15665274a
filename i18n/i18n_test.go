package i18n

import (
	"net/http/httptest"
	"testing"
	"testing/fstest"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(c["en"]) != len(c["fr"]) {
		t.Errorf("catalogs differ in size: en=%d fr=%d", len(c["en"]), len(c["fr"]))
	}
	for key := range c["en"] {
		if _, ok := c["fr"][key]; !ok {
			t.Errorf("fr is missing %q", key)
		}
	}
}

func TestT(t *testing.T) {
	c := Catalog{
		"en": {"Login": "Log in", "Only": "english"},
		"fr": {"Login": "Connexion"},
	}

	if got := c.T("fr", "Login"); got != "Connexion" {
		t.Errorf("expected Connexion, got %q", got)
	}
	if got := c.T("fr", "Only"); got != "english" {
		t.Errorf("expected fallback to english, got %q", got)
	}
	if got := c.T("de", "Login"); got != "Log in" {
		t.Errorf("expected fallback for unknown language, got %q", got)
	}
	if got := c.T("en", "Missing"); got != "Missing" {
		t.Errorf("expected key for missing message, got %q", got)
	}
}

func TestDetectLanguage(t *testing.T) {
	c := Catalog{"en": {}, "fr": {}}
	cases := map[string]string{
		"":                          "en",
		"fr-CH, fr;q=0.9, en;q=0.8": "fr",
		"de-DE, FR;q=0.5":           "fr",
		"de, es":                    "en",
		"en-US,en;q=0.9":            "en",
	}
	for header, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Accept-Language", header)
		}
		if got := c.DetectLanguage(r); got != want {
			t.Errorf("%q: expected %s, got %s", header, want, got)
		}
	}
}

func TestLoadTranslationsErrors(t *testing.T) {
	if _, err := LoadTranslations(fstest.MapFS{}, "locales"); err == nil {
		t.Error("expected error for missing files")
	}
	bad := fstest.MapFS{
		"l/en.json": {Data: []byte(`{}`)},
		"l/fr.json": {Data: []byte(`not json`)},
	}
	if _, err := LoadTranslations(bad, "l"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
