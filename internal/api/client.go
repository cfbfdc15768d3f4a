// Package api implements the authenticated HTTP surface of the remote
// archival service: version check, fetch assignment, torrent download
// and script self-update.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/s0up4200/archiverctl/internal/config"
)

var (
	// ErrHTTP is returned when the server answers with a non-2xx status.
	ErrHTTP = errors.New("server returned an error status")
	// ErrProtocol is returned when a structured response is missing the
	// Status field, carries an unknown Status value, lacks a required
	// key, or reports a server-side error.
	ErrProtocol = errors.New("unexpected server response")
	// ErrUnknownContainer is returned for operations on a container name
	// that is not present in the config. No request is made in that case.
	ErrUnknownContainer = errors.New("no container with that name")
)

// Client talks to the archival service. Every request is a GET against
// BaseURL joined with one of the configured relative endpoints, carrying
// the ApiUser/ApiKey headers.
type Client struct {
	cfg  *config.Config
	http *resty.Client
	log  zerolog.Logger
}

func NewClient(cfg *config.Config) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("ApiUser", cfg.ApiUser).
		SetHeader("ApiKey", cfg.ApiKey)

	return &Client{
		cfg:  cfg,
		http: httpClient,
		log:  log.With().Str("component", "api").Logger(),
	}
}

// Raw performs an authenticated GET against relURL with the given query
// parameters. relURL may carry its own query (the endpoint paths in the
// config do); params are merged into it.
func (c *Client) Raw(relURL string, params map[string]string) (*resty.Response, error) {
	resp, err := c.http.R().SetQueryParams(params).Get(relURL)
	if err != nil {
		c.log.Error().Err(err).Str("url", relURL).Msg("request failed")
		return nil, fmt.Errorf("request to %s failed: %w", relURL, err)
	}
	if resp.IsError() {
		c.log.Error().Str("url", relURL).Str("status", resp.Status()).Msg("request rejected")
		return nil, fmt.Errorf("%w: %s (%s)", ErrHTTP, resp.Status(), relURL)
	}
	return resp, nil
}

// rawStream is Raw without body parsing; the caller owns the returned
// response body and must close it.
func (c *Client) rawStream(relURL string, params map[string]string) (*resty.Response, error) {
	resp, err := c.http.R().
		SetQueryParams(params).
		SetDoNotParseResponse(true).
		Get(relURL)
	if err != nil {
		c.log.Error().Err(err).Str("url", relURL).Msg("request failed")
		return nil, fmt.Errorf("request to %s failed: %w", relURL, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		resp.RawBody().Close()
		c.log.Error().Str("url", relURL).Str("status", resp.Status()).Msg("request rejected")
		return nil, fmt.Errorf("%w: %s (%s)", ErrHTTP, resp.Status(), relURL)
	}
	return resp, nil
}

// Call performs a structured API request. Every structured endpoint must
// return a JSON object whose Status is "Ok" or "Error" and which carries
// all of the caller's required keys; anything else is ErrProtocol. A
// Status of "Error" is surfaced as ErrProtocol too, with the server's
// message attached.
func (c *Client) Call(relURL string, params map[string]string, required ...string) (map[string]json.RawMessage, error) {
	resp, err := c.Raw(relURL, params)
	if err != nil {
		return nil, err
	}

	var reply map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrProtocol, err)
	}

	status, err := stringField(reply, "Status")
	if err != nil {
		return nil, fmt.Errorf("%w: missing Status field", ErrProtocol)
	}
	if status != "Ok" && status != "Error" {
		return nil, fmt.Errorf("%w: unknown Status %q", ErrProtocol, status)
	}
	if status == "Error" {
		return nil, fmt.Errorf("%w: server reported an error: %s", ErrProtocol, serverMessage(reply))
	}

	for _, key := range required {
		if _, ok := reply[key]; !ok {
			return nil, fmt.Errorf("%w: missing %s field", ErrProtocol, key)
		}
	}
	return reply, nil
}

// serverMessage digs a human-readable error out of a reply. The server
// is not consistent about which field it uses.
func serverMessage(reply map[string]json.RawMessage) string {
	for _, key := range []string{"Error", "Message"} {
		if msg, err := stringField(reply, key); err == nil && msg != "" {
			return msg
		}
	}
	return "unknown error"
}

// stringField decodes a reply field as a string, accepting bare numbers
// as well since the server's field types wobble between releases.
func stringField(reply map[string]json.RawMessage, key string) (string, error) {
	raw, ok := reply[key]
	if !ok {
		return "", fmt.Errorf("missing %s field", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("field %s is neither string nor number", key)
}

func intField(reply map[string]json.RawMessage, key string) (int, error) {
	s, err := stringField(reply, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("field %s is not an integer: %w", key, err)
	}
	return n, nil
}

// CheckVersion asks the server for the newest script version.
func (c *Client) CheckVersion() (string, error) {
	reply, err := c.Call(c.cfg.VersionURL, nil, "ScriptVersion")
	if err != nil {
		return "", err
	}
	return stringField(reply, "ScriptVersion")
}

// Assignment is the server's answer to a fetch request: the torrent it
// picked for the container and the bookkeeping IDs that go with it.
type Assignment struct {
	TorrentID     string
	ArchiveID     string
	ContainerID   int
	ScriptVersion string
}

// FetchAssignment asks the server to assign the next torrent to the
// named container. The name is checked against the config before any
// request is made.
func (c *Client) FetchAssignment(name string) (*Assignment, error) {
	container, ok := c.cfg.Containers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContainer, name)
	}

	params := map[string]string{
		"ContainerName": name,
		"ContainerSize": container.Size,
		"MaxStalled":    strconv.Itoa(container.MaxStalled),
	}

	reply, err := c.Call(c.cfg.FetchURL, params, "ContainerID", "ScriptVersion", "TorrentID", "ArchiveID")
	if err != nil {
		return nil, err
	}

	containerID, err := intField(reply, "ContainerID")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	scriptVersion, err := stringField(reply, "ScriptVersion")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	torrentID, err := stringField(reply, "TorrentID")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	archiveID, err := stringField(reply, "ArchiveID")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	c.log.Info().
		Str("container", name).
		Int("containerID", containerID).
		Str("torrentID", torrentID).
		Msg("received assignment")

	return &Assignment{
		TorrentID:     torrentID,
		ArchiveID:     archiveID,
		ContainerID:   containerID,
		ScriptVersion: scriptVersion,
	}, nil
}

// DownloadAssignment streams the torrent file for an assignment. It
// returns the filename announced in the Content-Disposition header and
// the response body; the caller owns the body and must close it. A
// response without a usable filename is ErrProtocol.
func (c *Client) DownloadAssignment(name string, a *Assignment) (string, io.ReadCloser, error) {
	if _, ok := c.cfg.Containers[name]; !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownContainer, name)
	}

	params := map[string]string{
		"id":        a.TorrentID,
		"ArchiveID": a.ArchiveID,
	}

	resp, err := c.rawStream(c.cfg.DownloadURL, params)
	if err != nil {
		return "", nil, err
	}

	filename, err := dispositionFilename(resp.Header().Get("Content-Disposition"))
	if err != nil {
		resp.RawBody().Close()
		return "", nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	return filename, resp.RawBody(), nil
}

// FetchScript streams the newest script body from the update endpoint.
// The caller owns the returned body.
func (c *Client) FetchScript() (io.ReadCloser, error) {
	resp, err := c.rawStream(c.cfg.UpdateURL, nil)
	if err != nil {
		return nil, err
	}
	return resp.RawBody(), nil
}

// dispositionFilename extracts the filename from a Content-Disposition
// header. The result is base-named so a hostile header cannot point
// outside the target directory.
func dispositionFilename(header string) (string, error) {
	if header == "" {
		return "", errors.New("no Content-Disposition header")
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("bad Content-Disposition header: %w", err)
	}
	filename, ok := params["filename"]
	if !ok || filename == "" {
		return "", errors.New("no filename in Content-Disposition header")
	}
	return filepath.Base(filename), nil
}
