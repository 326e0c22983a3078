// Package mediatype resolves the declared content type of a chosen file.
package mediatype

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const octetStream = "application/octet-stream"

// Declared returns the media type a client declared for a file, without
// parameters. When the client declared nothing useful the type is sniffed
// from the leading bytes of data.
func Declared(header string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "" && mt != octetStream {
		return strings.ToLower(mt)
	}
	return Detect(data)
}

// Detect sniffs the media type of data.
func Detect(data []byte) string {
	mt := mimetype.Detect(data)
	if mt == nil {
		return octetStream
	}
	// drop parameters such as "; charset=utf-8"
	base, _, err := mime.ParseMediaType(mt.String())
	if err != nil {
		return mt.String()
	}
	return base
}

// DetectFile sniffs the media type of the file at path.
func DetectFile(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	base, _, err := mime.ParseMediaType(mt.String())
	if err != nil {
		return mt.String(), nil
	}
	return base, nil
}
