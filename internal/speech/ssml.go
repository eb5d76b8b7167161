package speech

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
)

const (
	ssmlNamespace  = "http://www.w3.org/2001/10/synthesis"
	msttsNamespace = "https://www.w3.org/2001/mstts"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape entity-escapes markup special characters in message text
func Escape(s string) string {
	return escaper.Replace(s)
}

func language(script *types.PodcastScript) string {
	if script.Language == "" {
		return types.DefaultLanguage
	}
	return script.Language
}

// speakOpen returns the root element used by the Azure voices
func speakOpen(lang string) string {
	return fmt.Sprintf("<speak version='1.0' xmlns='%s' xmlns:mstts='%s' xml:lang='%s'>", ssmlNamespace, msttsNamespace, Escape(lang))
}

// BuildSSML renders one voice element per turn. voices maps the two speaker
// roles to voice identifiers.
func BuildSSML(script *types.PodcastScript, voices map[types.Speaker]string) (string, error) {
	var sb strings.Builder
	sb.WriteString(speakOpen(language(script)))
	for i, turn := range script.Turns {
		voice, ok := voices[turn.Speaker]
		if !ok || voice == "" {
			return "", fmt.Errorf("no voice configured for turn %d speaker %q", i, turn.Speaker)
		}
		sb.WriteString("<voice name='")
		sb.WriteString(Escape(voice))
		sb.WriteString("'>")
		sb.WriteString(Escape(turn.Message))
		sb.WriteString("</voice>")
	}
	sb.WriteString("</speak>")
	return sb.String(), nil
}

// newMarkup prices a markup document by the script's unescaped message characters
func newMarkup(doc string, script *types.PodcastScript, per1M float64) *provider.Markup {
	chars := script.Characters()
	return &provider.Markup{
		Document:      doc,
		Characters:    chars,
		EstimatedCost: provider.CharacterCost(chars, per1M),
	}
}

// Segment is the decoded text of one unit element
type Segment struct {
	Attrs map[string]string
	Text  string
}

// Segments decodes every top-level unit element of a markup document.
// Text of nested elements is included and entities are unescaped.
func Segments(doc, unit string) ([]Segment, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	var (
		segments []Segment
		current  *Segment
		text     strings.Builder
		depth    int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid markup: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if current == nil && t.Name.Local == unit {
				current = &Segment{Attrs: map[string]string{}}
				for _, attr := range t.Attr {
					current.Attrs[attr.Name.Local] = attr.Value
				}
				text.Reset()
				depth = 0
			}
			if current != nil {
				depth++
			}
		case xml.EndElement:
			if current == nil {
				continue
			}
			depth--
			if depth == 0 {
				current.Text = text.String()
				segments = append(segments, *current)
				current = nil
			}
		case xml.CharData:
			if current != nil {
				text.Write(t)
			}
		}
	}

	return segments, nil
}

// markupCharacters counts the unescaped text characters inside unit elements
func markupCharacters(doc, unit string) (int, int, error) {
	segments, err := Segments(doc, unit)
	if err != nil {
		return 0, 0, err
	}
	chars := 0
	for _, s := range segments {
		chars += len([]rune(s.Text))
	}
	return chars, len(segments), nil
}
