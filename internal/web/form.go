package web

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Form is an HTML form ready to be submitted.
type Form struct {
	// Action is the absolute URL the form submits to.
	Action *url.URL

	// Method is GET or POST.
	Method string

	// Values holds the successful controls with their default values.
	Values url.Values
}

// Has reports whether the form has a control named name.
func (f *Form) Has(name string) bool {
	_, ok := f.Values[name]
	return ok
}

// Encode returns the form values in application/x-www-form-urlencoded form.
func (f *Form) Encode() string {
	return f.Values.Encode()
}

// ParseForm parses the index-th form of an HTML document.
// Relative actions are resolved against base; an empty action submits
// to base itself.
func ParseForm(r io.Reader, base *url.URL, index int) (*Form, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	sel := doc.Find("form").Eq(index)
	if sel.Length() == 0 {
		return nil, ErrFormNotFound
	}

	action := base
	if href, ok := sel.Attr("action"); ok && strings.TrimSpace(href) != "" {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return nil, err
		}
		action = base.ResolveReference(ref)
	}

	method := strings.ToUpper(strings.TrimSpace(sel.AttrOr("method", "")))
	if method != "POST" {
		method = "GET"
	}

	form := &Form{
		Action: action,
		Method: method,
		Values: url.Values{},
	}
	collectControls(sel, form.Values)
	return form, nil
}

// collectControls adds the default value of every successful control.
// Only the first named submit button is included, as a browser clicking
// the default button would do.
func collectControls(sel *goquery.Selection, values url.Values) {
	submitted := false

	sel.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(s) {
		case "textarea":
			values.Add(name, s.Text())
		case "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			if opt.Length() == 0 {
				return
			}
			values.Add(name, optionValue(opt))
		default:
			typ := strings.ToLower(s.AttrOr("type", "text"))
			switch typ {
			case "submit", "image":
				if submitted {
					return
				}
				submitted = true
				values.Add(name, s.AttrOr("value", ""))
			case "button", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); !checked {
					return
				}
				values.Add(name, s.AttrOr("value", "on"))
			default:
				values.Add(name, s.AttrOr("value", ""))
			}
		}
	})
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}
