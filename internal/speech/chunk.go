package speech

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Azure caps the number of voice elements per synthesis request
const DefaultMaxVoiceElements = 50

type span struct {
	start, end int64
}

// SplitMarkup splits a markup document into chunks of at most limit
// top-level unit elements. Every chunk repeats the bytes before the first
// unit and after the last unit, so each one is a well-formed document. A
// document within the limit is returned unchanged as the only chunk.
func SplitMarkup(doc, unit string, limit int) ([]string, error) {
	spans, err := unitSpans(doc, unit)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || len(spans) <= limit {
		return []string{doc}, nil
	}

	header := doc[:spans[0].start]
	footer := doc[spans[len(spans)-1].end:]

	chunks := make([]string, 0, (len(spans)+limit-1)/limit)
	for i := 0; i < len(spans); i += limit {
		last := min(i+limit, len(spans)) - 1
		var sb strings.Builder
		sb.WriteString(header)
		sb.WriteString(doc[spans[i].start:spans[last].end])
		sb.WriteString(footer)
		chunks = append(chunks, sb.String())
	}
	return chunks, nil
}

// unitSpans returns the byte ranges of the top-level unit elements
func unitSpans(doc, unit string) ([]span, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	var (
		spans []span
		start int64
		depth int
	)

	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid markup: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && t.Name.Local == unit {
				start = offset
				depth = 1
			} else if depth > 0 {
				depth++
			}
		case xml.EndElement:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, span{start: start, end: dec.InputOffset()})
			}
		}
	}

	if len(spans) == 0 {
		return nil, fmt.Errorf("markup has no %s elements", unit)
	}
	return spans, nil
}
