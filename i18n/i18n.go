package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed locales/*.json
var locales embed.FS

var DefaultLang = "en"

// Catalog maps language to message key to text.
type Catalog map[string]map[string]string

// Load reads the embedded en and fr catalogs.
func Load() (Catalog, error) {
	return LoadTranslations(locales, "locales")
}

func LoadTranslations(fsys fs.FS, dir string) (Catalog, error) {
	c := make(Catalog)
	files := []string{"en", "fr"}
	for _, lang := range files {
		data, err := fs.ReadFile(fsys, fmt.Sprintf("%s/%s.json", dir, lang))
		if err != nil {
			return nil, err
		}
		var t map[string]string
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%s.json: %w", lang, err)
		}
		c[lang] = t
	}
	return c, nil
}

func (c Catalog) T(lang, key string) string {
	if t, ok := c[lang]; ok {
		if val, ok := t[key]; ok {
			return val
		}
	}
	// Fallback to English
	if lang != DefaultLang {
		return c.T(DefaultLang, key)
	}
	return key
}

func (c Catalog) DetectLanguage(r *http.Request) string {
	// Example: fr-CH, fr;q=0.9, en;q=0.8, de;q=0.7, *;q=0.5
	accept := r.Header.Get("Accept-Language")
	if accept != "" {
		parts := strings.Split(accept, ",")
		for _, part := range parts {
			lang := strings.TrimSpace(strings.Split(part, ";")[0])
			if len(lang) >= 2 {
				lang = strings.ToLower(lang[:2]) // e.g., "en-US" -> "en"
				if _, ok := c[lang]; ok {
					return lang
				}
			}
		}
	}

	return DefaultLang
}
