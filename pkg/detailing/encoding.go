package detailing

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var encodingDeclPattern = regexp.MustCompile(`(?i)(<\?xml[^>]*encoding\s*=\s*["'])[^"']*(["'])`)

// toUTF8 returns the document as UTF-8. Exports are written in ISO-8859-1;
// anything that is not already valid UTF-8 is decoded as such. The XML
// declaration is rewritten so the parser does not decode a second time.
func toUTF8(raw []byte) ([]byte, error) {
	data := raw
	if !utf8.Valid(raw) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode latin-1 content: %w", err)
		}
		data = decoded
	}
	return encodingDeclPattern.ReplaceAll(data, []byte("${1}UTF-8${2}")), nil
}
