package crawler

import "github.com/v0xg/snapup/internal/locator"

// PageMap represents the analyzed structure of a web page
type PageMap struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Elements   []Element `json:"elements"`
	Navigation []NavItem `json:"navigation"`
	IsSPA      bool      `json:"isSPA"`
}

// Element represents an interactive element on the page
type Element struct {
	LocatorType  locator.Kind `json:"locator_type"`
	LocatorValue string       `json:"locator_value"`
	Type         string       `json:"type"` // button, input type, link, select, checkbox, radio
	Text         string       `json:"text,omitempty"`
	Placeholder  string       `json:"placeholder,omitempty"`
	Name         string       `json:"name,omitempty"`
	ID           string       `json:"id,omitempty"`
}

// NavItem represents a navigation link
type NavItem struct {
	LocatorType  locator.Kind `json:"locator_type"`
	LocatorValue string       `json:"locator_value"`
	Text         string       `json:"text"`
	Href         string       `json:"href"`
}

// rawElement is what the page script reports.
type rawElement struct {
	Selector    string `json:"selector"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Placeholder string `json:"placeholder"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	Href        string `json:"href"`
}

// locate picks the most stable locator for an element: its id, then its
// name, then the generated CSS selector.
func (r rawElement) locate() (locator.Kind, string) {
	switch {
	case r.ID != "":
		return locator.ID, r.ID
	case r.Name != "":
		return locator.Name, r.Name
	default:
		return locator.CSSSelector, r.Selector
	}
}

func (r rawElement) element() Element {
	kind, value := r.locate()
	return Element{
		LocatorType:  kind,
		LocatorValue: value,
		Type:         r.Type,
		Text:         r.Text,
		Placeholder:  r.Placeholder,
		Name:         r.Name,
		ID:           r.ID,
	}
}

func (r rawElement) navItem() NavItem {
	kind, value := r.locate()
	return NavItem{LocatorType: kind, LocatorValue: value, Text: r.Text, Href: r.Href}
}
