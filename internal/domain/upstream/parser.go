package upstream

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// blockRecord is one <block> element from the seat-status document. Only the
// attributes relevant to seat lookup are retained.
type blockRecord struct {
	term    string // pn attribute
	section string // usn attribute
	key     string // key attribute
	os      string // os attribute, raw open-seat count
}

// Document is a parsed seat-status payload with its blocks in document order.
type Document struct {
	blocks []blockRecord
}

// ParseDocument parses the raw XML payload into a Document. It walks the
// token stream and collects every <block> element, preserving document
// order. Any XML syntax error fails the whole document with ErrInvalidXML.
func ParseDocument(raw string) (*Document, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	doc := &Document{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidXML, err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "block" {
			continue
		}

		var rec blockRecord
		for _, attr := range se.Attr {
			switch attr.Name.Local {
			case "pn":
				rec.term = attr.Value
			case "usn":
				rec.section = attr.Value
			case "key":
				rec.key = attr.Value
			case "os":
				rec.os = attr.Value
			}
		}
		doc.blocks = append(doc.blocks, rec)
	}

	return doc, nil
}

// normalizeKey trims and uppercases one component of the block key triple.
func normalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// FindOpenSeats returns the open-seat count of the first block whose
// (term, section, key) triple matches the given one after normalization.
// It fails with ErrBlockNotFound when no block matches, when the matching
// block has no os attribute, or when the os value is not an integer; the
// three cases carry distinct messages but are one error kind to callers.
func (d *Document) FindOpenSeats(termCode, sectionCode, blockKey string) (int, error) {
	expectedTerm := normalizeKey(termCode)
	expectedSection := normalizeKey(sectionCode)
	expectedKey := normalizeKey(blockKey)

	for _, rec := range d.blocks {
		if normalizeKey(rec.term) != expectedTerm ||
			normalizeKey(rec.section) != expectedSection ||
			normalizeKey(rec.key) != expectedKey {
			continue
		}

		rawOS := strings.TrimSpace(rec.os)
		if rawOS == "" {
			return 0, fmt.Errorf("%w: matched block is missing os attribute", ErrBlockNotFound)
		}
		osValue, err := strconv.Atoi(rawOS)
		if err != nil {
			return 0, fmt.Errorf("%w: matched block has non-integer os value: %s", ErrBlockNotFound, rawOS)
		}
		return osValue, nil
	}

	return 0, fmt.Errorf("%w: no block found for pn=%s, usn=%s, key=%s",
		ErrBlockNotFound, expectedTerm, expectedSection, expectedKey)
}
