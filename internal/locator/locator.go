// Package locator normalises user supplied locator kinds and translates
// locators into the query forms the browser driver understands.
package locator

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a canonical element lookup strategy
type Kind string

const (
	ID              Kind = "ID"
	Name            Kind = "NAME"
	XPath           Kind = "XPATH"
	TagName         Kind = "TAG_NAME"
	ClassName       Kind = "CLASS_NAME"
	LinkText        Kind = "LINK_TEXT"
	PartialLinkText Kind = "PARTIAL_LINK_TEXT"
	CSSSelector     Kind = "CSS_SELECTOR"
)

// Kinds lists every canonical kind in declaration order.
var Kinds = []Kind{ID, Name, XPath, TagName, ClassName, LinkText, PartialLinkText, CSSSelector}

// ErrUnsupportedKind is matched by every error returned from Normalize.
var ErrUnsupportedKind = errors.New("unsupported locator type")

// UnsupportedKindError reports the rejected input verbatim.
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("unsupported locator type: %q", e.Kind)
}

func (e *UnsupportedKindError) Is(target error) bool {
	return target == ErrUnsupportedKind
}

// Normalize maps a locator kind string to its canonical Kind.
//
// Matching is case-sensitive. The only aliases are "linkText" and "LINKTEXT"
// for LINK_TEXT and "CSS" for CSS_SELECTOR.
func Normalize(s string) (Kind, error) {
	switch s {
	case "linkText", "LINKTEXT":
		return LinkText, nil
	case "CSS":
		return CSSSelector, nil
	}
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &UnsupportedKindError{Kind: s}
}

// By returns the WebDriver strategy name for the kind.
func (k Kind) By() string {
	return strings.ToLower(strings.ReplaceAll(string(k), "_", " "))
}

// Locator identifies an element on the current document.
type Locator struct {
	Kind  Kind
	Value string
}

// New normalises kind and builds a Locator.
func New(kind, value string) (Locator, error) {
	k, err := Normalize(kind)
	if err != nil {
		return Locator{}, err
	}
	return Locator{Kind: k, Value: value}, nil
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Kind.By(), l.Value)
}

// Query translates the locator into either a CSS selector or an XPath
// expression. Exactly one of the return values is non-empty.
func (l Locator) Query() (css, xpath string) {
	switch l.Kind {
	case ID:
		return fmt.Sprintf("[id=%s]", cssString(l.Value)), ""
	case Name:
		return fmt.Sprintf("[name=%s]", cssString(l.Value)), ""
	case TagName:
		return l.Value, ""
	case ClassName:
		return "." + cssIdent(l.Value), ""
	case LinkText:
		return "", fmt.Sprintf("//a[normalize-space(.)=%s]", xpathLiteral(strings.TrimSpace(l.Value)))
	case PartialLinkText:
		return "", fmt.Sprintf("//a[contains(., %s)]", xpathLiteral(l.Value))
	case XPath:
		return "", l.Value
	default:
		return l.Value, ""
	}
}

func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}

func cssIdent(s string) string {
	var b strings.Builder
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '-', c >= 0x80:
			b.WriteRune(c)
		case c >= '0' && c <= '9' && i > 0:
			b.WriteRune(c)
		default:
			fmt.Fprintf(&b, `\%x `, c)
		}
	}
	return b.String()
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
