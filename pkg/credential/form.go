package credential

import (
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
)

const maxFormField = 64 << 10

// ParseForm decodes an intercepted request body. Slack's web client sends
// both multipart/form-data and urlencoded bodies; file parts are skipped.
// A body that cannot be decoded yields an empty set.
func ParseForm(contentType string, body []byte) url.Values {
	form := url.Values{}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		r := multipart.NewReader(strings.NewReader(string(body)), params["boundary"])
		for {
			p, err := r.NextPart()
			if err != nil {
				break
			}
			if p.FileName() != "" || p.FormName() == "" {
				continue
			}
			v, err := io.ReadAll(io.LimitReader(p, maxFormField))
			if err != nil {
				break
			}
			form.Add(p.FormName(), string(v))
		}
		return form
	}

	vals, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return form
	}
	return vals
}

func isMultipart(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}
