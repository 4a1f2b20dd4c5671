// Package router implements the server's HTTP request router: method
// and path validation, token authentication, per-user rate limiting,
// and dispatch to the user+token store and the per-user file mirror.
// It plays the role rpc.serverImpl's ServeHTTP plays for upspin's RPC
// service, adapted from a single fixed service prefix to the backup
// wire protocol's small, path-prefix-dispatched route table.
package router

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xatophi/remote-backup-pds-project/authstore"
	"github.com/xatophi/remote-backup-pds-project/digest"
	"github.com/xatophi/remote-backup-pds-project/errors"
	"github.com/xatophi/remote-backup-pds-project/log"
	"github.com/xatophi/remote-backup-pds-project/mirror"
)

// tokenLength is the length of tokens minted on a successful login.
const tokenLength = 32

// Router dispatches authenticated backup requests to the user+token
// store and the file mirror, rejecting anything the wire protocol does
// not define.
type Router struct {
	auth  *authstore.Store
	files *mirror.Mirror

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New returns a Router backed by auth and files. Each authenticated
// user is limited to limit requests per second, with bursts up to
// burst; a zero limit disables rate limiting.
func New(auth *authstore.Store, files *mirror.Mirror, limit rate.Limit, burst int) *Router {
	return &Router{
		auth:     auth,
		files:    files,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (rt *Router) limiterFor(user string) *rate.Limiter {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	l, ok := rt.limiters[user]
	if !ok {
		l = rate.NewLimiter(rt.limit, rt.burst)
		rt.limiters[user] = l
	}
	return l
}

func (rt *Router) allow(user string) bool {
	if rt.limit == 0 {
		return true
	}
	return rt.limiterFor(user).Allow()
}

// decodeSpaces undoes the client's narrow percent-encoding: %20 back to
// a literal space. No other escape sequences are recognized.
func decodeSpaces(s string) string {
	return strings.ReplaceAll(s, "%20", " ")
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodDelete:
	default:
		http.Error(w, "unknown method", http.StatusBadRequest)
		return
	}

	if strings.Contains(r.URL.Path, "..") {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	target := decodeSpaces(r.URL.Path)

	if r.Method == http.MethodPost && target == "/login" {
		rt.handleLogin(w, r)
		return
	}

	token := r.Header.Get("Authorization")
	if token == "" {
		http.Error(w, "token needed", http.StatusUnauthorized)
		return
	}
	user, ok := rt.auth.VerifyToken(token)
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if !rt.allow(user) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	switch {
	case r.Method == http.MethodPost && target == "/logout":
		rt.handleLogout(w, user)
	case r.Method == http.MethodPost && strings.HasPrefix(target, "/backup/"):
		rt.handleBackup(w, r, user, strings.TrimPrefix(target, "/backup/"))
	case r.Method == http.MethodPost && strings.HasPrefix(target, "/probefolder/"):
		rt.handleProbeFolder(w, r, user, strings.TrimPrefix(target, "/probefolder/"))
	case r.Method == http.MethodGet && strings.HasPrefix(target, "/probefile/"):
		rt.handleProbeFile(w, user, strings.TrimPrefix(target, "/probefile/"))
	case r.Method == http.MethodDelete && strings.HasPrefix(target, "/backup/"):
		rt.handleDelete(w, user, strings.TrimPrefix(target, "/backup/"))
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		http.Error(w, "missing login parameters", http.StatusBadRequest)
		return
	}
	if body.Username == "" || body.Password == "" {
		http.Error(w, "missing login parameters", http.StatusBadRequest)
		return
	}

	ok, err := rt.auth.VerifyUserPassword(body.Username, body.Password)
	if err != nil {
		log.Error.Printf("router: verify password for %s: %v", body.Username, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	token, err := authstore.CreateToken(tokenLength)
	if err != nil {
		log.Error.Printf("router: create token for %s: %v", body.Username, err)
		http.Error(w, "error creating token", http.StatusInternalServerError)
		return
	}
	rt.auth.SaveTokenToUser(body.Username, token)

	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, token)
}

func (rt *Router) handleLogout(w http.ResponseWriter, user string) {
	if !rt.auth.LogoutUser(user) {
		http.Error(w, "error during logout", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (rt *Router) handleBackup(w http.ResponseWriter, r *http.Request, user, path string) {
	var body struct {
		Type        string `json:"type"`
		EncodedFile string `json:"encodedfile"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		http.Error(w, "missing parameters", http.StatusBadRequest)
		return
	}

	switch body.Type {
	case "file":
		data, err := digest.Decode(body.EncodedFile)
		if err != nil {
			http.Error(w, "bad encoded file", http.StatusBadRequest)
			return
		}
		if err := rt.files.SaveFile(user, path, data); err != nil {
			log.Error.Printf("router: save file %s/%s: %v", user, path, err)
			http.Error(w, "impossible to save the file, retry", http.StatusInternalServerError)
			return
		}
	case "folder":
		if err := rt.files.NewDirectory(user, path); err != nil {
			log.Error.Printf("router: create folder %s/%s: %v", user, path, err)
			http.Error(w, "impossible to create the folder", http.StatusInternalServerError)
			return
		}
	default:
		http.Error(w, "illegal type", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (rt *Router) handleProbeFolder(w http.ResponseWriter, r *http.Request, user, path string) {
	var body struct {
		Children []string `json:"children"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	children := make(map[string]bool, len(body.Children))
	for _, name := range body.Children {
		children[name] = true
	}

	present, err := rt.files.ProbeDirectory(user, path, children)
	if err != nil {
		log.Error.Printf("router: probe folder %s/%s: %v", user, path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !present {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (rt *Router) handleProbeFile(w http.ResponseWriter, user, path string) {
	d, ok, err := rt.files.GetFileDigest(user, path)
	if err != nil {
		log.Error.Printf("router: probe file %s/%s: %v", user, path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, d)
}

func (rt *Router) handleDelete(w http.ResponseWriter, user, path string) {
	if path == "" {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}
	deleted, err := rt.files.BackupDelete(user, path)
	if err != nil {
		log.Error.Printf("router: delete %s/%s: %v", user, path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func decodeJSON(r io.Reader, v interface{}) error {
	const op = "router.decodeJSON"
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return errors.E(op, errors.Protocol, err)
	}
	return nil
}
