package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/archiverctl/internal/config"
)

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.ApiUser = "user456789012345"
	cfg.ApiKey = "key45678901234567890123456789012"
	cfg.BaseURL = baseURL
	cfg.Containers["Foo"] = config.Container{
		Size:           "500G",
		WatchDirectory: "/tmp/Foo",
	}
	return cfg
}

func TestRawSendsCredentialsAndParams(t *testing.T) {
	var gotUser, gotKey, gotAction, gotExtra string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("ApiUser")
		gotKey = r.Header.Get("ApiKey")
		gotAction = r.URL.Query().Get("action")
		gotExtra = r.URL.Query().Get("extra")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	client := NewClient(cfg)

	_, err := client.Raw("archive.php?action=scriptver", map[string]string{"extra": "1"})
	require.NoError(t, err)

	assert.Equal(t, cfg.ApiUser, gotUser)
	assert.Equal(t, cfg.ApiKey, gotKey)
	assert.Equal(t, "scriptver", gotAction, "query carried by the endpoint path must survive")
	assert.Equal(t, "1", gotExtra)
}

func TestRawErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.Raw("archive.php", nil)
	assert.ErrorIs(t, err, ErrHTTP)
}

func TestCallValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing status", body: `{"ScriptVersion": "0.10"}`},
		{name: "unknown status", body: `{"Status": "Maybe"}`},
		{name: "server error", body: `{"Status": "Error", "Error": "no free slots"}`},
		{name: "missing required key", body: `{"Status": "Ok"}`},
		{name: "not an object", body: `[1, 2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL))
			_, err := client.Call("archive.php", nil, "ScriptVersion")
			assert.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestCheckVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Status": "Ok", "ScriptVersion": "0.11"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	version, err := client.CheckVersion()
	require.NoError(t, err)
	assert.Equal(t, "0.11", version)
}

func TestFetchAssignment(t *testing.T) {
	var gotParams map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotParams = map[string]string{
			"ContainerName": r.URL.Query().Get("ContainerName"),
			"ContainerSize": r.URL.Query().Get("ContainerSize"),
			"MaxStalled":    r.URL.Query().Get("MaxStalled"),
		}
		// ContainerID arrives as a number, TorrentID as a string
		w.Write([]byte(`{
			"Status": "Ok",
			"ContainerID": 42,
			"ScriptVersion": "0.10",
			"TorrentID": "12345",
			"ArchiveID": "67890"
		}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	assignment, err := client.FetchAssignment("Foo")
	require.NoError(t, err)

	assert.Equal(t, "Foo", gotParams["ContainerName"])
	assert.Equal(t, "500G", gotParams["ContainerSize"])
	assert.Equal(t, "0", gotParams["MaxStalled"])

	assert.Equal(t, 42, assignment.ContainerID)
	assert.Equal(t, "0.10", assignment.ScriptVersion)
	assert.Equal(t, "12345", assignment.TorrentID)
	assert.Equal(t, "67890", assignment.ArchiveID)
}

func TestFetchAssignmentUnknownContainerMakesNoRequest(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.FetchAssignment("Bar")
	assert.ErrorIs(t, err, ErrUnknownContainer)
	assert.Zero(t, requests)
}

func TestDownloadAssignment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12345", r.URL.Query().Get("id"))
		assert.Equal(t, "67890", r.URL.Query().Get("ArchiveID"))
		w.Header().Set("Content-Disposition", `attachment; filename="abc.torrent"`)
		w.Write([]byte("torrent-bytes"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	filename, body, err := client.DownloadAssignment("Foo", &Assignment{
		TorrentID: "12345",
		ArchiveID: "67890",
	})
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "abc.torrent", filename)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "torrent-bytes", string(data))
}

func TestDownloadAssignmentNoFilename(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("torrent-bytes"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, _, err := client.DownloadAssignment("Foo", &Assignment{TorrentID: "1", ArchiveID: "2"})
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDispositionFilenameStripsPath(t *testing.T) {
	filename, err := dispositionFilename(`attachment; filename="../../etc/abc.torrent"`)
	require.NoError(t, err)
	assert.Equal(t, "abc.torrent", filename)
}
