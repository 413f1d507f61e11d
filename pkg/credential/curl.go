package credential

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

var ErrNotCurl = errors.New("not a curl command")

// FromCurl converts a "Copy as cURL" command of a Slack web-client request
// into a record. It understands -H/--header, -b/--cookie, --data*/-d and
// -F/--form, which covers what browsers emit.
func (e Extractor) FromCurl(command string) (Record, error) {
	command = strings.ReplaceAll(command, "\\\r\n", " ")
	command = strings.ReplaceAll(command, "\\\n", " ")
	args, err := shellquote.Split(command)
	if err != nil {
		return Record{}, fmt.Errorf("split curl command: %w", err)
	}
	if len(args) == 0 || args[0] != "curl" {
		return Record{}, ErrNotCurl
	}

	var (
		rawURL  string
		headers = http.Header{}
		form    = url.Values{}
		body    []string
	)
	for i := 1; i < len(args); i++ {
		arg := args[i]
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch {
		case arg == "-H" || arg == "--header":
			if k, v, ok := strings.Cut(next(), ":"); ok {
				headers.Add(strings.TrimSpace(k), strings.TrimSpace(v))
			}
		case arg == "-b" || arg == "--cookie":
			headers.Set("Cookie", next())
		case arg == "-d" || strings.HasPrefix(arg, "--data"):
			body = append(body, next())
		case arg == "-F" || arg == "--form":
			if k, v, ok := strings.Cut(next(), "="); ok {
				form.Add(k, v)
			}
		case arg == "--url":
			rawURL = next()
		case arg == "-X" || arg == "--request" || arg == "-A" || arg == "--user-agent" || arg == "-e" || arg == "--referer":
			next()
		case strings.HasPrefix(arg, "-"):
		default:
			if rawURL == "" {
				rawURL = arg
			}
		}
	}
	if rawURL == "" {
		return Record{}, fmt.Errorf("%w: no URL", ErrNotCurl)
	}

	for _, b := range body {
		mergeBody(form, headers, b)
	}

	rec := e.Extract(headers, form, rawURL)
	if rec.Workspace == "" {
		return rec, fmt.Errorf("curl URL %q is not a Slack workspace URL", rawURL)
	}
	return rec, nil
}

// FromCurl uses the default extractor.
func FromCurl(command string) (Record, error) {
	return Extractor{Now: time.Now}.FromCurl(command)
}

// mergeBody folds a --data payload into form. Chrome copies multipart
// bodies with literal \r\n escapes inside a $'...' string.
func mergeBody(form url.Values, headers http.Header, body string) {
	body = strings.TrimPrefix(body, "$")
	ct := headers.Get("Content-Type")
	if isMultipart(ct) {
		body = strings.ReplaceAll(body, `\r\n`, "\r\n")
	}
	for k, vv := range ParseForm(ct, []byte(body)) {
		for _, v := range vv {
			form.Add(k, v)
		}
	}
}
