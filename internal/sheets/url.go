// Package sheets imports repair records from published spreadsheet exports.
package sheets

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInvalidURL = errors.New("invalid spreadsheet URL")

	spreadsheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)
	gidPattern           = regexp.MustCompile(`[#&?]gid=([0-9]+)`)
)

const exportURLFormat = "https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s"

// ExtractSpreadsheetID returns the document id of a spreadsheet URL, or ""
// when the URL has no /d/<id> segment.
func ExtractSpreadsheetID(sheetURL string) string {
	m := spreadsheetIDPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractGID returns the tab id of a spreadsheet URL; the first tab is "0".
func ExtractGID(sheetURL string) string {
	m := gidPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return "0"
	}
	return m[1]
}

// SheetKey identifies one tab of one spreadsheet. Importing a URL with a key
// already in the history updates that import.
func SheetKey(sheetURL string) string {
	return ExtractSpreadsheetID(sheetURL) + "_" + ExtractGID(sheetURL)
}

// CSVURL converts a spreadsheet URL into its CSV export URL.
func CSVURL(sheetURL string) (string, error) {
	id := ExtractSpreadsheetID(sheetURL)
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, sheetURL)
	}
	return fmt.Sprintf(exportURLFormat, id, ExtractGID(sheetURL)), nil
}
