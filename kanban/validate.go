package kanban

import (
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

const (
	TitleMax       = 30
	DescriptionMax = 100
)

func validText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n < 1 || n > max {
		return "", &ValidationError{Field: field, Reason: "length", Min: 1, Max: max}
	}
	return s, nil
}

func validTitle(s string) (string, error) { return validText("title", s, TitleMax) }

func validDescription(s string) (string, error) { return validText("description", s, DescriptionMax) }

func validID(field, id string) error {
	if _, err := ulid.ParseStrict(id); err != nil {
		return &ValidationError{Field: field, Reason: "malformed"}
	}
	return nil
}

func validOrder(order int) error {
	if order < 1 {
		return &ValidationError{Field: "order", Reason: "positive"}
	}
	return nil
}
