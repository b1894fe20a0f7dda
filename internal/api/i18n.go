package api

import (
	"net/http"

	"golang.org/x/text/language"
)

// The form is Indonesian first; English is offered for reviewers.
var supportedLanguages = []language.Tag{language.Indonesian, language.English}

var languageMatcher = language.NewMatcher(supportedLanguages)

var decisionLabels = map[string][2]string{
	"id": {"Tidak berisiko stunting", "Berisiko stunting"},
	"en": {"not at risk", "at risk of stunting"},
}

// negotiateLanguage picks the reply language from the lang query parameter,
// then Accept-Language, defaulting to Indonesian.
func negotiateLanguage(r *http.Request) string {
	tag, _ := language.MatchStrings(languageMatcher, r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
	base, _ := tag.Base()
	if _, ok := decisionLabels[base.String()]; ok {
		return base.String()
	}
	return "id"
}

func decisionLabel(lang string, atRisk bool) string {
	labels, ok := decisionLabels[lang]
	if !ok {
		labels = decisionLabels["id"]
	}
	if atRisk {
		return labels[1]
	}
	return labels[0]
}
