// Package i18n localises the warnings produced by a media check.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English catalog entries are the keys themselves.
const (
	InvalidFileName       = "Invalid file name, please rename: %s"
	SubfoldersUnsupported = "Subfolders are not supported in the media folder."
	LatexErrors           = "There are %d notes with a LaTeX error."
	PassLimit             = "Media check stopped after %d passes while renaming files; run it again."
)

var supported = []language.Tag{language.English, language.French}

var french = map[string]string{
	InvalidFileName:       "Nom de fichier invalide, veuillez le renommer : %s",
	SubfoldersUnsupported: "Les sous-dossiers ne sont pas pris en charge dans le dossier des médias.",
	LatexErrors:           "Il y a %d notes avec une erreur LaTeX.",
	PassLimit:             "Vérification des médias arrêtée après %d passes pendant le renommage des fichiers ; relancez-la.",
}

var (
	matcher = language.NewMatcher(supported)
	cat     = buildCatalog()
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, fr := range french {
		_ = b.SetString(language.English, key, key)
		_ = b.SetString(language.French, key, fr)
	}
	return b
}

// Translator formats messages in one language.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a translator for lang (a BCP 47 tag such as "fr" or "en-GB").
// Unknown or empty languages fall back to English.
func New(lang string) *Translator {
	tag := language.English
	if lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			_, idx, conf := matcher.Match(parsed)
			if conf != language.No {
				tag = supported[idx]
			}
		}
	}
	return &Translator{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// Language returns the language the translator resolved to.
func (t *Translator) Language() language.Tag { return t.tag }

// Text formats key with args in the translator's language.
func (t *Translator) Text(key string, args ...any) string {
	return t.printer.Sprintf(key, args...)
}
