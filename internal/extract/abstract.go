// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// AbstractSelector is the container SSRN uses for abstract text.
const AbstractSelector = "div.abstract-text"

// MinAbstractLength is the number of characters a text must exceed to count
// as an abstract. Shorter matches are buttons, labels, or placeholders.
const MinAbstractLength = 50

// Strategy names the structural rule that produced an abstract.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyParagraphs
	StrategyContainerText
	StrategyHeading
	StrategyLooseClass
)

func (s Strategy) String() string {
	switch s {
	case StrategyParagraphs:
		return "abstract-paragraphs"
	case StrategyContainerText:
		return "abstract-container-text"
	case StrategyHeading:
		return "abstract-heading"
	case StrategyLooseClass:
		return "abstract-class"
	}
	return "none"
}

var (
	landingIDPattern = regexp.MustCompile(`abstract_id=(\d+)`)
	abstractLabel    = regexp.MustCompile(`(?i)^abstract\s*[:.]?\s*`)
)

// Abstract returns the abstract text of a landing page, or "" when no
// strategy finds one. A missing abstract is not an error.
func Abstract(html string) string {
	text, _ := AbstractWithStrategy(html)
	return text
}

// AbstractWithStrategy tries, in order: paragraphs inside the abstract
// container; the container's own text; paragraphs sharing a parent with an
// "Abstract" heading; any div whose class mentions "abstract". The first
// result longer than MinAbstractLength wins.
func AbstractWithStrategy(html string) (string, Strategy) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", StrategyNone
	}

	container := doc.Find(AbstractSelector).First()
	if container.Length() > 0 {
		if text := joinParagraphs(container.Find("p")); longEnough(text) {
			return text, StrategyParagraphs
		}
		if text := stripLabel(normalizeSpace(container.Text())); longEnough(text) {
			return text, StrategyContainerText
		}
	}

	if text := fromHeading(doc); text != "" {
		return text, StrategyHeading
	}

	var loose string
	doc.Find("div[class]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		if !strings.Contains(strings.ToLower(class), "abstract") {
			return true
		}
		text := stripLabel(normalizeSpace(sel.Text()))
		if !longEnough(text) {
			return true
		}
		loose = text
		return false
	})
	if loose != "" {
		return loose, StrategyLooseClass
	}
	return "", StrategyNone
}

// fromHeading finds a heading reading "Abstract" and concatenates the
// paragraphs under the same parent.
func fromHeading(doc *goquery.Document) string {
	var text string
	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		label := strings.TrimRight(normalizeSpace(h.Text()), ":")
		if !strings.EqualFold(label, "abstract") {
			return true
		}
		text = joinParagraphs(h.Parent().ChildrenFiltered("p"))
		if !longEnough(text) {
			text = ""
		}
		return text == ""
	})
	return text
}

func longEnough(text string) bool {
	return utf8.RuneCountInString(text) > MinAbstractLength
}

func stripLabel(text string) string {
	return strings.TrimSpace(abstractLabel.ReplaceAllString(text, ""))
}

func joinParagraphs(ps *goquery.Selection) string {
	var parts []string
	ps.Each(func(_ int, p *goquery.Selection) {
		if t := normalizeSpace(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

// LandingID returns the numeric abstract_id carried in an SSRN landing URL,
// or "" when absent.
func LandingID(rawURL string) string {
	m := landingIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}
