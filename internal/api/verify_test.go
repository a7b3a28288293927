package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/rinkcal/internal/logger"
	"github.com/kareemsasa3/rinkcal/internal/testutil"
	"github.com/kareemsasa3/rinkcal/internal/verify"
)

const anokaCSV = "association_name,name,sport_type,team_level,level_detail,calendar_sync_url\n" +
	"Anoka,Bantam A,hockey,Bantams,A,webcal://www.anokaareahockey.com/ical_feed?tags=9100345\n" +
	"Anoka,Squirt B1,hockey,Squirts,B1,webcal://www.anokaareahockey.com/ical_feed?tags=9100398\n"

func readEvents(t *testing.T, resp *http.Response) []VerifyEvent {
	t.Helper()
	var events []VerifyEvent
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var e VerifyEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, sc.Err())
	return events
}

func TestVerifyStreamsResults(t *testing.T) {
	hs := newHarness(t, "", false)
	site := testutil.NewSite(map[string]string{
		"https://www.anokaareahockey.com/ical_feed?tags=9100345": "BEGIN:VCALENDAR\nBEGIN:VEVENT\nDTSTART:20991020T180000Z\nEND:VEVENT\nEND:VCALENDAR\n",
	})
	hs.handler.SetVerifier(func() *verify.Verifier { return verify.New(site.Fetcher(), logger.NewNop()) })

	resp := hs.do(t, http.MethodPost, "/api/verify?all=true", anokaCSV, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp)
	require.Len(t, events, 4)
	assert.Equal(t, "start", events[0].Type)
	assert.Equal(t, 2, events[0].TotalSamples)
	assert.Equal(t, 1, events[0].AssociationCount)

	require.NotNil(t, events[1].Result)
	assert.Equal(t, "Bantam A", events[1].Result.Team)
	assert.Equal(t, verify.StatusValid, events[1].Result.Status)
	require.NotNil(t, events[2].Result)
	assert.Equal(t, verify.StatusError, events[2].Result.Status)

	assert.Equal(t, "complete", events[3].Type)
	assert.Equal(t, &verify.Summary{Valid: 1, Errors: 1, Total: 2}, events[3].Summary)
}

func TestVerifyRejectsBadUploads(t *testing.T) {
	hs := newHarness(t, "", false)
	assert.Equal(t, http.StatusServiceUnavailable, hs.do(t, http.MethodPost, "/api/verify", anokaCSV, "").StatusCode)

	hs.handler.SetVerifier(func() *verify.Verifier { return verify.New(testutil.NewSite(nil).Fetcher(), nil) })
	assert.Equal(t, http.StatusBadRequest, hs.do(t, http.MethodPost, "/api/verify", "name\nBantam A\n", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest,
		hs.do(t, http.MethodPost, "/api/verify", "association_name,calendar_sync_url\nAnoka,\n", "").StatusCode)
}
