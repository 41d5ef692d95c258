package checker

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMarker is what the profile page says when the id does not exist.
const DefaultMarker = "The specified profile could not be found."

var ErrMalformedBody = errors.New("response body is not valid UTF-8 text")

// Classifier decides from a lookup page whether the candidate is unregistered.
type Classifier struct {
	marker     []byte
	normMarker string
	selector   string
}

// NewClassifier matches marker against the page. selector narrows the text that
// is searched after HTML parsing; empty means "body".
func NewClassifier(marker, selector string) (*Classifier, error) {
	if strings.TrimSpace(marker) == "" {
		return nil, errors.New("marker must not be empty")
	}
	if selector == "" {
		selector = "body"
	}
	return &Classifier{
		marker:     []byte(marker),
		normMarker: collapseSpace(marker),
		selector:   selector,
	}, nil
}

// IsAvailable reports whether body contains the marker. A raw substring match
// wins; otherwise the marker is looked for in the rendered text of the selection,
// which tolerates entities and reflowed whitespace.
func (c *Classifier) IsAvailable(body []byte) (bool, error) {
	if !utf8.Valid(body) {
		return false, ErrMalformedBody
	}
	if bytes.Contains(body, c.marker) {
		return true, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("parse html: %w", err)
	}
	sel := doc.Find(c.selector)
	if sel.Length() == 0 {
		return false, nil
	}
	return strings.Contains(collapseSpace(sel.Text()), c.normMarker), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
