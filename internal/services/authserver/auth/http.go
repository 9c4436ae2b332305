package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/obs"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// StoreInfo describes the backing store for the debug endpoint.
type StoreInfo struct {
	Driver string
	Path   string
}

type HTTPOpts struct {
	Logger         *zap.Logger
	DebugEndpoints bool
	Store          StoreInfo
}

type HTTPServer struct {
	uc   *Usecase
	log  *zap.Logger
	opts HTTPOpts
}

func NewHTTPServer(uc *Usecase, o HTTPOpts) *HTTPServer {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPServer{uc: uc, log: log, opts: o}
}

type okResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type loginResponse struct {
	OK        bool   `json:"ok"`
	ThemeName string `json:"themeName,omitempty"`
	Token     string `json:"token,omitempty"`
	Error     string `json:"error,omitempty"`
}

type validationResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Fields error  `json:"fields,omitempty"`
}

type meResponse struct {
	OK     bool           `json:"ok"`
	Claims map[string]any `json:"claims"`
}

type dbInfoResponse struct {
	Driver string `json:"driver"`
	DBPath string `json:"dbPath"`
	Users  int64  `json:"users"`
}

// Register mounts the HTTP routes on mux.
func (s *HTTPServer) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodGet, "/ping", s.ping},
		{http.MethodPost, "/api/login", s.login},
		{http.MethodPost, "/api/register", s.register},
		{http.MethodGet, "/api/me", s.me},
	}
	if s.opts.DebugEndpoints {
		routes = append(routes, struct {
			method, path string
			h            runtime.HandlerFunc
		}{http.MethodGet, "/debug/dbinfo", s.dbInfo})
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.path, r.h); err != nil {
			return err
		}
	}
	return nil
}

func (s *HTTPServer) ping(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	sess, err := s.uc.Authenticate(r.Context(), req.Login, req.Password)
	switch {
	case errors.Is(err, ErrBadCredentials):
		writeJSON(w, http.StatusOK, loginResponse{OK: false, Error: "bad credentials"})
	case err != nil:
		s.internal(w, r, err)
	default:
		writeJSON(w, http.StatusOK, loginResponse{OK: true, ThemeName: sess.Theme, Token: sess.Token})
	}
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.ValidateWithThemes(s.uc.Themes()); err != nil {
		writeValidation(w, err)
		return
	}

	_, err := s.uc.Register(r.Context(), req.Login, req.Password, req.Theme)
	switch {
	case errors.Is(err, account.ErrDuplicateLogin):
		writeJSON(w, http.StatusConflict, okResponse{Error: "login already exists"})
	case errors.Is(err, ErrInvalidTheme), errors.Is(err, ErrInvalidLogin),
		errors.Is(err, ErrPasswordTooLong), errors.Is(err, ErrEmptyPassword):
		writeJSON(w, http.StatusUnprocessableEntity, okResponse{Error: err.Error()})
	case err != nil:
		s.internal(w, r, err)
	default:
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	}
}

func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	token, ok := bearerFromHeader(r.Header.Get("Authorization"))
	if !ok {
		unauthorized(w)
		return
	}
	claims, err := s.uc.VerifyToken(token)
	if err != nil {
		obs.WithTrace(r.Context(), s.log).Debug("token rejected", zap.Error(err))
		unauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{OK: true, Claims: claims})
}

func (s *HTTPServer) dbInfo(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, dbInfoResponse{
		Driver: s.opts.Store.Driver,
		DBPath: s.opts.Store.Path,
		Users:  s.uc.AccountCount(r.Context()),
	})
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, okResponse{Error: "invalid json"})
		return false
	}
	return true
}

func (s *HTTPServer) internal(w http.ResponseWriter, r *http.Request, err error) {
	obs.WithTrace(r.Context(), s.log).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, okResponse{Error: "internal"})
}

func writeValidation(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: "validation", Fields: err})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, http.StatusUnauthorized, okResponse{Error: "unauthorized"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func bearerFromHeader(v string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(v), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
