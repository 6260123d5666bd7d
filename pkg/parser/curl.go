package parser

import (
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vikasavnish/curlrun/pkg/ir"
)

// DefaultMethods are the HTTP methods accepted unless WithMethods says otherwise.
var DefaultMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// CurlParser converts curl commands to requests
type CurlParser struct {
	methods map[string]struct{} // upper-cased
	now     func() time.Time
}

// Option configures a CurlParser
type Option func(*CurlParser)

// WithMethods replaces the set of accepted HTTP methods. Names are matched
// case-insensitively.
func WithMethods(methods ...string) Option {
	return func(p *CurlParser) {
		p.methods = methodSet(methods)
	}
}

// WithClock sets the clock used for request metadata.
func WithClock(now func() time.Time) Option {
	return func(p *CurlParser) {
		p.now = now
	}
}

// NewCurlParser creates a new curl parser
func NewCurlParser(opts ...Option) *CurlParser {
	p := &CurlParser{
		methods: methodSet(DefaultMethods),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func methodSet(methods []string) map[string]struct{} {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[strings.ToUpper(m)] = struct{}{}
	}
	return set
}

// Parse converts a curl command string to a request. It either returns a
// complete request or fails with a *ParseError or *UnsupportedFeatureError.
func (p *CurlParser) Parse(curlCmd string) (*ir.Request, error) {
	if strings.TrimSpace(curlCmd) == "" {
		return nil, parseErr(ErrEmptyInput, "")
	}

	tokens := Tokenize(curlCmd)
	if len(tokens) > 0 && strings.EqualFold(tokens[0], "curl") {
		tokens = tokens[1:]
	}

	var (
		target    string
		targetSet bool
		method    string
		dataParts []string
		useHTTP2  bool
	)
	headers := ir.NewHeaders()

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		switch token {
		case "-X", "--request":
			v, err := requireValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			method = v

		case "-H", "--header":
			v, err := requireValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			name, value, err := splitHeader(v)
			if err != nil {
				return nil, err
			}
			headers.Set(name, value)

		case "-d", "--data", "--data-raw", "--data-binary":
			v, err := requireValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			dataParts = append(dataParts, unquote(v))

		case "--data-urlencode":
			v, err := requireValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			dataParts = append(dataParts, encodeDataURLEncode(v))

		case "--url":
			v, err := requireValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			target = v
			targetSet = true

		case "-A", "--user-agent":
			v, err := requireValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			headers.Set("User-Agent", v)

		case "-e", "--referer":
			v, err := requireValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			headers.Set("Referer", v)

		case "-b", "--cookie":
			v, err := requireValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			headers.Set("Cookie", v)

		case "-u", "--user":
			v, err := requireValue(tokens, &i, token)
			if err != nil {
				return nil, err
			}
			headers.Set("Authorization", basicAuth(v))

		case "-I", "--head":
			method = "HEAD"

		case "--http2":
			useHTTP2 = true

		case "-F", "--form":
			return nil, &UnsupportedFeatureError{Flag: token, Feature: "multipart/form-data"}

		case "--compressed", "-s", "--silent", "-L", "--location", "-k", "--insecure":
			// accepted for compatibility, no effect

		default:
			if !strings.HasPrefix(token, "-") {
				// first bare token is the URL
				if !targetSet {
					target = token
					targetSet = true
				}
			}
			// unknown flags are ignored and do not consume a value
		}
	}

	if strings.TrimSpace(target) == "" {
		return nil, parseErr(ErrMissingURL, "")
	}

	body := strings.Join(dataParts, "&")

	if strings.TrimSpace(method) == "" {
		method = "GET"
		if body != "" {
			method = "POST"
		}
	}

	method = strings.ToUpper(method)
	if _, ok := p.methods[method]; !ok {
		return nil, parseErr(ErrUnsupportedMethod, method)
	}

	createdAt := p.now()
	return &ir.Request{
		Metadata: &ir.Metadata{
			ID:        uuid.New().String(),
			Source:    "curl",
			CreatedAt: &createdAt,
		},
		Method:   method,
		URL:      target,
		Headers:  headers,
		Body:     body,
		UseHTTP2: useHTTP2,
	}, nil
}

// requireValue advances the cursor to the value following a flag.
func requireValue(tokens []string, i *int, flag string) (string, error) {
	if *i+1 >= len(tokens) {
		return "", parseErr(ErrMissingValue, flag)
	}
	*i++
	return tokens[*i], nil
}

func splitHeader(header string) (string, string, error) {
	sep := strings.IndexByte(header, ':')
	if sep <= 0 {
		return "", "", parseErr(ErrMalformedHeader, header)
	}
	return strings.TrimSpace(header[:sep]), strings.TrimSpace(header[sep+1:]), nil
}

// unquote strips one layer of matching single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// encodeDataURLEncode percent-encodes the value part of name=value, or the
// whole string when there is no '='.
func encodeDataURLEncode(s string) string {
	s = unquote(s)
	if name, value, ok := strings.Cut(s, "="); ok {
		return name + "=" + escapeData(value)
	}
	return escapeData(s)
}

// escapeData percent-encodes everything except RFC 3986 unreserved characters.
func escapeData(s string) string {
	// QueryEscape leaves only unreserved characters and turns spaces into '+';
	// a literal '+' is already %2B.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func basicAuth(userpass string) string {
	if !strings.Contains(userpass, ":") {
		userpass += ":"
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(userpass))
}
