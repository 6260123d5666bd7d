package parser

import (
	"strings"

	"github.com/vikasavnish/curlrun/pkg/ir"
)

// Format renders req as a curl command that Parse turns back into an
// equivalent request. Every argument is single-quoted.
func Format(req *ir.Request) string {
	parts := []string{"curl", "-X", req.Method}

	for _, h := range req.Headers.Entries() {
		parts = append(parts, "-H", shellQuote(h.Name+": "+h.Value))
	}

	if req.Body != "" {
		parts = append(parts, "--data-raw", shellQuote(req.Body))
	}

	if req.UseHTTP2 {
		parts = append(parts, "--http2")
	}

	if strings.HasPrefix(req.URL, "-") {
		parts = append(parts, "--url")
	}
	parts = append(parts, shellQuote(req.URL))

	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
