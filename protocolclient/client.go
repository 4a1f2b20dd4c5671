// Package protocolclient implements the client side of the backup wire
// protocol: login/logout, probing, uploading and deleting paths on the
// per-user server mirror.
//
// Every call maps the server's response onto one of three logical
// outcomes. Go expresses that as a (bool, error) pair rather than a
// three-valued enum: a nil error with true means OK, a nil error with
// false means the server answered 404 (never an error — see callers),
// and a non-nil error means FAILURE, carrying an *errors.Error whose
// Kind classifies the failure (see the errors package).
package protocolclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/xatophi/remote-backup-pds-project/digest"
	"github.com/xatophi/remote-backup-pds-project/errors"
)

// deadline is the timeout applied to each of the connect, write and read
// stages of a request, per the wire protocol's design.
const deadline = 60 * time.Second

// Client issues the backup protocol's requests against one server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	host       string
	userAgent  string
	root       string // absolute local path being watched; used to relativize paths.

	mu    sync.Mutex
	token string
}

// Config holds everything Client needs to dial the server. It is a subset
// of clientconfig.Config so that package does not need to import this one.
type Config struct {
	Address    string
	Port       int
	Host       string // value for the Host header; defaults to Address if empty.
	UserAgent  string
	BackupPath string
}

// New returns a Client configured to talk to the server named in cfg.
func New(cfg Config) *Client {
	host := cfg.Host
	if host == "" {
		host = cfg.Address
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "backup-client/1.0"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: deadline,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   deadline,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: deadline,
			},
		},
		baseURL:   fmt.Sprintf("http://%s:%d", cfg.Address, cfg.Port),
		host:      host,
		userAgent: userAgent,
		root:      cfg.BackupPath,
	}
}

// HasToken reports whether the client currently holds an authentication
// token.
func (c *Client) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// relative turns an absolute local path into the URL-safe relative path
// the server expects, percent-encoding only spaces as %20.
func (c *Client) relative(absPath string) string {
	rel := strings.TrimPrefix(absPath, c.root)
	rel = strings.TrimPrefix(rel, string('/'))
	return encodeSpaces(rel)
}

func encodeSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "%20")
}

// do issues an HTTP request and classifies the result into the three
// logical outcomes. body may be nil.
func (c *Client) do(op, method, target string, body []byte, requireAuth bool) (status int, respBody []byte, err error) {
	req, err := http.NewRequest(method, c.baseURL+target, bodyReader(body))
	if err != nil {
		return 0, nil, errors.E(op, errors.Other, err)
	}
	req.Host = c.host
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth {
		tok := c.currentToken()
		req.Header.Set("Authorization", tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.E(op, classify(err), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.E(op, errors.Read, err)
	}
	return resp.StatusCode, data, nil
}

func bodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}

// classify maps a transport-level error to the taxonomy's stage kinds.
func classify(err error) errors.Kind {
	var dnsErr *net.DNSError
	if asDNSError(err, &dnsErr) {
		return errors.Resolve
	}
	var opErr *net.OpError
	if asOpError(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return errors.Connect
		case "write":
			return errors.Write
		case "read":
			return errors.Read
		}
	}
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return errors.Shutdown
	}
	return errors.Connect
}

func asDNSError(err error, target **net.DNSError) bool {
	for err != nil {
		if e, ok := err.(*net.DNSError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func asOpError(err error, target **net.OpError) bool {
	for err != nil {
		if e, ok := err.(*net.OpError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Login authenticates to the server with username and password, storing
// the returned token for subsequent calls.
func (c *Client) Login(username, password string) error {
	const op = "protocolclient.Login"

	body, err := json.Marshal(struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{username, password})
	if err != nil {
		return errors.E(op, errors.Other, err)
	}

	status, respBody, err := c.do(op, http.MethodPost, "/login", body, false)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		c.setToken(string(respBody))
		return nil
	case http.StatusUnauthorized:
		return errors.E(op, errors.Auth, errors.HTTP, status)
	default:
		return errors.E(op, errors.HTTP, status, errors.Errorf("%s", respBody))
	}
}

// Logout invalidates the current session and clears the stored token.
func (c *Client) Logout() error {
	const op = "protocolclient.Logout"

	status, respBody, err := c.do(op, http.MethodPost, "/logout", nil, true)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.E(op, errors.HTTP, status, errors.Errorf("%s", respBody))
	}
	c.clearToken()
	return nil
}

// ProbeFolder asks the server whether a directory exists, reconciling its
// children against the given set. It returns (true, nil) if the folder
// is present after reconciliation, (false, nil) if it is absent (404),
// or a non-nil error on any other failure.
func (c *Client) ProbeFolder(absPath string, children []string) (bool, error) {
	const op = "protocolclient.ProbeFolder"

	body, err := json.Marshal(struct {
		Children []string `json:"children"`
	}{children})
	if err != nil {
		return false, errors.E(op, errors.Other, err)
	}

	target := "/probefolder/" + c.relative(absPath)
	status, respBody, err := c.do(op, http.MethodPost, target, body, true)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, errors.E(op, errors.HTTP, status, errors.Errorf("%s", respBody))
	}
}

// ProbeFile asks the server whether the file at absPath exists and
// matches by digest. The local digest is computed concurrently with the
// outstanding network round trip. On a digest mismatch, ProbeFile issues
// DeletePath followed by BackupFile and re-probes, returning the result
// of that re-probe; the spec requires the re-probe to then return OK.
func (c *Client) ProbeFile(absPath string) (bool, error) {
	const op = "protocolclient.ProbeFile"

	target := "/probefile/" + c.relative(absPath)

	type netResult struct {
		status int
		body   []byte
		err    error
	}
	netCh := make(chan netResult, 1)
	go func() {
		status, body, err := c.do(op, http.MethodGet, target, nil, true)
		netCh <- netResult{status, body, err}
	}()

	localDigest, digestErr := digest.Of(absPath)

	res := <-netCh
	if res.err != nil {
		return false, res.err
	}
	switch res.status {
	case http.StatusNotFound:
		return false, nil
	case http.StatusOK:
		if digestErr != nil {
			return false, errors.E(op, errors.Other, digestErr)
		}
		remoteDigest := string(res.body)
		if remoteDigest == localDigest {
			return true, nil
		}
		// Mismatch: the mirror is stale. Replace it and confirm.
		if _, err := c.DeletePath(absPath); err != nil {
			return false, err
		}
		if err := c.BackupFile(absPath); err != nil {
			return false, err
		}
		return c.ProbeFile(absPath)
	default:
		return false, errors.E(op, errors.HTTP, res.status, errors.Errorf("%s", res.body))
	}
}

// BackupFile uploads the file at absPath, base64-encoded, as the content
// of its mirror entry.
func (c *Client) BackupFile(absPath string) error {
	const op = "protocolclient.BackupFile"

	encoded, err := digest.Encode(absPath)
	if err != nil {
		return errors.E(op, err)
	}
	body, err := json.Marshal(struct {
		Type        string `json:"type"`
		EncodedFile string `json:"encodedfile"`
	}{"file", encoded})
	if err != nil {
		return errors.E(op, errors.Other, err)
	}

	target := "/backup/" + c.relative(absPath)
	status, respBody, err := c.do(op, http.MethodPost, target, body, true)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.E(op, errors.HTTP, status, errors.Errorf("%s", respBody))
	}
	return nil
}

// BackupFolder creates the mirror entry for the directory at absPath.
func (c *Client) BackupFolder(absPath string) error {
	const op = "protocolclient.BackupFolder"

	body, err := json.Marshal(struct {
		Type string `json:"type"`
	}{"folder"})
	if err != nil {
		return errors.E(op, errors.Other, err)
	}

	target := "/backup/" + c.relative(absPath)
	status, respBody, err := c.do(op, http.MethodPost, target, body, true)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.E(op, errors.HTTP, status, errors.Errorf("%s", respBody))
	}
	return nil
}

// DeletePath removes the mirror entry (file or folder, recursively) at
// absPath. It returns (true, nil) if something was deleted, (false, nil)
// if nothing existed there (404), or a non-nil error otherwise.
func (c *Client) DeletePath(absPath string) (bool, error) {
	const op = "protocolclient.DeletePath"

	target := "/backup/" + c.relative(absPath)
	status, respBody, err := c.do(op, http.MethodDelete, target, nil, true)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, errors.E(op, errors.HTTP, status, errors.Errorf("%s", respBody))
	}
}
