// Package decoder reverses HTTP content encodings and renders response bodies
// for display.
package decoder

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// DefaultDisplayLimit is the number of decoded bytes Render shows by default.
const DefaultDisplayLimit = 1024 * 1024

// ParseEncodings splits Content-Encoding header values into an ordered list of
// encoding names, in declaration order.
func ParseEncodings(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if name := strings.TrimSpace(part); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// Decode reads r to the end, undoing encodings from the last declared to the
// first. Decoding stops at the first encoding it does not recognize; the bytes
// produced up to that layer are returned as they are. An empty body decodes
// to no bytes whatever the declared encodings.
func Decode(r io.Reader, encodings []string) ([]byte, error) {
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("read body: %w", err)
	}

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}()

	var stream io.Reader = br
	for i := len(encodings) - 1; i >= 0; i-- {
		next, closer, ok, err := wrap(stream, encodings[i])
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", encodings[i], err)
		}
		if !ok {
			break
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		stream = next
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// wrap returns a reader that removes one encoding layer. ok is false for
// encodings that are not recognized.
func wrap(r io.Reader, encoding string) (io.Reader, io.Closer, bool, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, false, err
		}
		return zr, zr, true, nil

	case "deflate":
		return inflate(r)

	case "br":
		return brotli.NewReader(r), nil, true, nil

	case "identity":
		return r, nil, true, nil

	default:
		return nil, nil, false, nil
	}
}

// inflate handles both zlib-wrapped deflate (RFC 1950, as RFC 9110
// prescribes) and raw deflate streams, which some servers send instead.
func inflate(r io.Reader) (io.Reader, io.Closer, bool, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err == nil && isZlibHeader(header) {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, nil, false, err
		}
		return zr, zr, true, nil
	}

	fr := flate.NewReader(br)
	return fr, fr, true, nil
}

func isZlibHeader(h []byte) bool {
	return h[0]&0x0f == 8 && h[0]>>4 <= 7 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

// Display is a response body prepared for display.
type Display struct {
	Text      string
	Truncated bool
	Size      int // decoded size before truncation
}

// Render converts decoded bytes to display text. At most limit bytes are
// shown; a JSON document is re-indented, anything else is shown as is. When
// the payload exceeds limit a marker naming the limit is appended.
func Render(data []byte, limit int) Display {
	if limit <= 0 {
		limit = DefaultDisplayLimit
	}

	d := Display{Size: len(data)}
	shown := data
	if len(shown) > limit {
		shown = shown[:limit]
		d.Truncated = true
	}

	raw := string(shown)
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "�")
	}

	if pretty, ok := prettyJSON(raw); ok {
		d.Text = pretty
	} else {
		d.Text = raw
	}

	if d.Truncated {
		d.Text += fmt.Sprintf("\n\n--- truncated at %d bytes ---", limit)
	}
	return d
}

// prettyJSON indents text with two spaces. ok is false when text is not a
// single valid JSON value.
func prettyJSON(text string) (string, bool) {
	if !json.Valid([]byte(text)) {
		return "", false
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(text)), "", "  "); err != nil {
		return "", false
	}
	return buf.String(), true
}
