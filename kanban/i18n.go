package kanban

import (
	"context"
	"errors"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	supported = []language.Tag{language.English, language.Turkish}
	matcher   = language.NewMatcher(supported)
)

var catalog = map[language.Tag]map[string]string{
	language.English: {
		"error":        "Error",
		"unauthorized": "User not found",
		"board":        "Board not found",
		"task":         "Task not found",
		"length":       "%s must be between %d and %d characters",
		"malformed":    "%s is malformed",
		"positive":     "%s must be a positive number",
		"transaction":  "The change could not be saved",
		"conflict":     "The change conflicts with existing data",
		"unknown":      "Unknown error",
		"title":        "Title",
		"description":  "Description",
		"order":        "Order",
		"board id":     "Board id",
		"task id":      "Task id",
	},
	language.Turkish: {
		"error":        "Hata",
		"unauthorized": "Kullanıcı bulunamadı",
		"board":        "Pano bulunamadı",
		"task":         "Görev bulunamadı",
		"length":       "%s %d ile %d karakter arasında olmalıdır",
		"malformed":    "%s geçersiz",
		"positive":     "%s pozitif bir sayı olmalıdır",
		"transaction":  "Değişiklik kaydedilemedi",
		"conflict":     "Değişiklik mevcut verilerle çakışıyor",
		"unknown":      "Bilinmeyen hata",
		"title":        "Başlık",
		"description":  "Açıklama",
		"order":        "Sıra",
		"board id":     "Pano kimliği",
		"task id":      "Görev kimliği",
	},
}

func init() {
	for tag, msgs := range catalog {
		for key, msg := range msgs {
			if err := message.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
}

// MatchLanguage picks a supported language for an Accept-Language header,
// falling back to def when nothing matches.
func MatchLanguage(accept string, def language.Tag) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return def
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return def
	}
	return supported[idx]
}

// ParseLanguage parses a configured default language, returning English for
// anything unsupported.
func ParseLanguage(s string) language.Tag {
	tag, err := language.Parse(s)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

type languageKey struct{}

func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, languageKey{}, tag)
}

func printer(ctx context.Context) *message.Printer {
	tag, ok := ctx.Value(languageKey{}).(language.Tag)
	if !ok {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// Localize renders err as "<generic>: <detail>" in the language of ctx.
func Localize(ctx context.Context, err error) string {
	p := printer(ctx)
	return p.Sprintf("error") + ": " + detail(p, err)
}

func detail(p *message.Printer, err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
	)
	switch CodeOf(err) {
	case CodeValidation:
		errors.As(err, &ve)
		field := p.Sprintf(message.Key(ve.Field, ve.Field))
		if ve.Reason == "length" {
			return p.Sprintf("length", field, ve.Min, ve.Max)
		}
		return p.Sprintf(message.Key(ve.Reason, "%s is invalid"), field)
	case CodeAuth:
		return p.Sprintf("unauthorized")
	case CodeNotFound:
		errors.As(err, &nf)
		return p.Sprintf(message.Key(nf.Entity, "Not found"))
	case CodeConflict:
		return p.Sprintf("conflict")
	case CodeTransaction:
		return p.Sprintf("transaction")
	}
	return p.Sprintf("unknown")
}
