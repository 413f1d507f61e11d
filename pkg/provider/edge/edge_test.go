package edge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
)

var testRecord = credential.Record{
	Workspace:       "acme",
	Token:           "xoxc-111-222-333",
	Cookie:          "b=abc; d=xoxd-222%2Fxyz; d-s=1700000000",
	TeamID:          "T0123ABCD",
	ClientRequestID: "6b1e297c-1756862180.076",
}

func newTestClient(t *testing.T, h http.HandlerFunc, rec credential.Record) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cl, err := New(rec,
		OptionBaseURL(srv.URL),
		OptionHTTPClient(srv.Client()),
		OptionLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	require.NoError(t, err)
	return cl
}

func TestNewRequiresValidRecord(t *testing.T) {
	rec := testRecord
	rec.Cookie = ""
	_, err := New(rec)
	assert.ErrorIs(t, err, credential.ErrInvalidRecord)
}

func TestEmojiAddRequest(t *testing.T) {
	var (
		seen   bool
		fields = map[string]string{}
		order  []string
	)
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/emoji.add", r.URL.Path)
		assert.Equal(t,
			"_x_id=6b1e297c-1756862180.076&_x_csid="+r.URL.Query().Get("_x_csid")+
				"&slack_route=T0123ABCD&_x_version_ts=noversion&fp="+r.URL.Query().Get("fp")+"&_x_num_retries=0",
			r.URL.RawQuery)
		assert.NotEmpty(t, r.URL.Query().Get("_x_csid"))
		assert.Len(t, r.URL.Query().Get("fp"), 2)

		assert.Equal(t, testRecord.Cookie, r.Header.Get("Cookie"))
		origin := "http://" + r.Host + "/customize/emoji"
		assert.Equal(t, origin, r.Header.Get("Origin"))
		assert.Equal(t, origin, r.Header.Get("Referer"))
		assert.Contains(t, r.Header.Get("User-Agent"), "Chrome/")
		assert.Contains(t, r.Header.Get("Content-Type"), "boundary=----WebKitFormBoundary")

		mr, err := r.MultipartReader()
		require.NoError(t, err)
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			order = append(order, p.FormName())
			data, _ := io.ReadAll(p)
			if p.FormName() == "image" {
				assert.Equal(t, "party_parrot.gif", p.FileName())
				assert.Equal(t, "image/gif", p.Header.Get("Content-Type"))
			}
			fields[p.FormName()] = string(data)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, testRecord)

	err := cl.EmojiAdd(context.Background(), "party_parrot", []byte("GIF89a..."), "image/gif")
	require.NoError(t, err)
	require.True(t, seen)

	assert.Equal(t, []string{"token", "name", "mode", "search_args", "image", "_x_reason", "_x_mode"}, order)
	assert.Equal(t, "xoxc-111-222-333", fields["token"])
	assert.Equal(t, "party_parrot", fields["name"])
	assert.Equal(t, "data", fields["mode"])
	assert.Equal(t, "{}", fields["search_args"])
	assert.Equal(t, "GIF89a...", fields["image"])
	assert.Equal(t, "online", fields["_x_mode"])
	assert.NotEmpty(t, fields["_x_reason"])
}

func TestEmojiAddMintsRequestID(t *testing.T) {
	rec := testRecord
	rec.ClientRequestID = ""
	rec.TeamID = ""
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	now := time.Date(2025, 9, 3, 1, 16, 20, 76*int(time.Millisecond), time.UTC)
	cl, err := New(rec, OptionBaseURL(srv.URL), OptionClock(func() time.Time { return now }))
	require.NoError(t, err)
	require.NoError(t, cl.EmojiAdd(context.Background(), "a", []byte{1}, "image/png"))

	assert.Regexp(t, `^_x_id=[0-9a-f]{8}-1756862180\.076&`, query)
	assert.Contains(t, query, "&slack_route=&")
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "api error",
			status: http.StatusOK,
			body:   `{"ok":false,"error":"error_name_taken"}`,
			check: func(t *testing.T, err error) {
				var ae *APIError
				require.True(t, errors.As(err, &ae))
				assert.Equal(t, "error_name_taken", ae.Code)
				assert.Equal(t, "emoji.add", ae.Endpoint)
			},
		},
		{
			name:   "missing scope",
			status: http.StatusOK,
			body:   `{"ok":false,"error":"missing_scope","needed":"emoji:write"}`,
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "emoji.add: missing_scope (needed: emoji:write)")
			},
		},
		{
			name:   "rate limited with json",
			status: http.StatusTooManyRequests,
			body:   `{"ok":false,"error":"ratelimited"}`,
			check: func(t *testing.T, err error) {
				var ae *APIError
				require.True(t, errors.As(err, &ae))
				assert.Equal(t, "ratelimited", ae.Code)
			},
		},
		{
			name:   "gateway html",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusBadGateway, se.Code)
			},
		},
		{
			name:   "empty ok",
			status: http.StatusOK,
			body:   ``,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyResponse)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, testRecord)
			err := cl.EmojiAdd(context.Background(), "x", []byte{1}, "image/png")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestEmojiAdminListPages(t *testing.T) {
	var pages []string
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/api/emoji.adminList", r.URL.Path)
		assert.Equal(t, "xoxc-111-222-333", r.PostForm.Get("token"))
		assert.Equal(t, "100", r.PostForm.Get("count"))
		page := r.PostForm.Get("page")
		pages = append(pages, page)

		n := 1
		if page == "2" {
			n = 2
		}
		resp := map[string]any{
			"ok":     true,
			"emoji":  []map[string]any{{"name": "parrot_" + page, "url": "https://emoji.slack-edge.com/T1/parrot_" + page + ".gif", "user_display_name": "Ana", "created": 1700000000}},
			"paging": map[string]any{"count": 1, "total": 2, "page": n, "pages": 2},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}, testRecord)

	list, err := cl.EmojiAdminList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, list, 2)
	assert.Equal(t, "parrot_1", list[0].Name)
	assert.Equal(t, "Ana", list[1].UserDisplayName)
	assert.True(t, strings.HasSuffix(list[1].URL, "parrot_2.gif"))
}
