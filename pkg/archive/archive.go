// Package archive owns the Encyclopaedia Metallum site contract: endpoint
// construction for the browse-by-letter API and decoding of its JSON page
// payloads. The harvest engine treats both as opaque collaborators.
package archive

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultBaseURL is the public archive host.
const DefaultBaseURL = "https://www.metal-archives.com"

// Alphabet returns the segment enumeration in dispatch order. Earlier
// segments hold more bands and are enqueued at higher priority.
func Alphabet() []string {
	return []string{
		"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L",
		"M", "N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X",
		"Y", "Z", "NBR", "~",
	}
}

// Header returns the data sink column header.
func Header() []string {
	return []string{"band", "country", "genre", "status"}
}

// Endpoint builds the browse-by-letter page URL for one segment and offset.
func Endpoint(baseURL, segment string, offset, pageSize int) string {
	return fmt.Sprintf("%s/browse/ajax-letter/l/%s/json?sEcho=1&iDisplayStart=%d&iDisplayLength=%d",
		baseURL, segment, offset, pageSize)
}

// Page is one decoded page of a segment: the record rows plus the segment's
// reported total record count.
type Page struct {
	Records [][]string
	Total   int
}

// pagePayload matches the DataTables-style JSON the archive serves.
type pagePayload struct {
	Records [][]string `json:"aaData"`
	Total   int        `json:"iTotalRecords"`
}

// DecodePage parses a page body. A body that is not the expected JSON shape
// returns an error; the caller decides whether to retry or record the
// failure.
func DecodePage(body []byte) (Page, error) {
	var payload pagePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Page{}, fmt.Errorf("decode page: %w", err)
	}
	return Page{Records: payload.Records, Total: payload.Total}, nil
}

// Sanitize flattens a response body into a single line for error-sink rows.
func Sanitize(body []byte) string {
	text := strings.ReplaceAll(string(body), "\n", "")
	return strings.ReplaceAll(text, "\t", "")
}
