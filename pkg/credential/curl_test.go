package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCurlURLEncoded(t *testing.T) {
	cmd := `curl 'https://acme.slack.com/api/emoji.list?_x_id=abcd1234-1700000000.123&slack_route=T0ACME123' \
  -H 'accept: */*' \
  -H 'content-type: application/x-www-form-urlencoded' \
  -b 'd=xoxd-abc%2Bdef; d-s=1700000000; lc=1' \
  --data-raw 'token=xoxc-111-222-333&_x_reason=customize-emoji'`

	rec, err := testExtractor().FromCurl(cmd)
	require.NoError(t, err)

	assert.Equal(t, "acme", rec.Workspace)
	assert.Equal(t, "xoxc-111-222-333", rec.Token)
	assert.Equal(t, "d=xoxd-abc%2Bdef; d-s=1700000000; lc=1", rec.Cookie)
	assert.Equal(t, "T0ACME123", rec.TeamID)
	assert.Equal(t, "abcd1234-1700000000.123", rec.ClientRequestID)
	assert.True(t, rec.Valid())
}

func TestFromCurlMultipart(t *testing.T) {
	cmd := `curl 'https://beta.slack.com/api/client.counts' -H 'content-type: multipart/form-data; boundary=----WebKitFormBoundaryX' -H 'cookie: d=xoxd-zzz' --data-raw $'------WebKitFormBoundaryX\r\nContent-Disposition: form-data; name="token"\r\n\r\nxoxc-999\r\n------WebKitFormBoundaryX--\r\n'`

	rec, err := testExtractor().FromCurl(cmd)
	require.NoError(t, err)

	assert.Equal(t, "beta", rec.Workspace)
	assert.Equal(t, "xoxc-999", rec.Token)
	assert.Equal(t, "d=xoxd-zzz", rec.Cookie)
}

func TestFromCurlErrors(t *testing.T) {
	_, err := FromCurl("wget https://acme.slack.com/api/emoji.list")
	require.ErrorIs(t, err, ErrNotCurl)

	_, err = FromCurl("curl -H 'x: y'")
	require.ErrorIs(t, err, ErrNotCurl)

	_, err = FromCurl("curl 'https://example.com/api/emoji.list'")
	require.Error(t, err)

	_, err = FromCurl("curl 'unterminated")
	require.Error(t, err)
}
