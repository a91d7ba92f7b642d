package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/files"
	"github.com/sebas5384/now-php-extra/pkg/pipeline"
)

const (
	defaultAddr    = ":8080"
	defaultMaxBody = 64 << 20
	shutdownGrace  = 10 * time.Second
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		rt       runtimeFlags
		addr     string
		workRoot string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run builds behind an HTTP API",
		Long: `Run builds behind an HTTP API.

POST /build takes a JSON body with the project's files (base64 encoded), the
entrypoint and an optional config, and answers with a description of the
lambda and static assets. Add ?zip=1 to include the lambda archive.

GET /healthz reports liveness.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, workRoot, rt)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&workRoot, "work-root", "", "parent of per-build work directories (default: system temp)")
	addRuntimeFlags(cmd, &rt)
	return cmd
}

// runServe serves until ctx is cancelled, then shuts down gracefully.
func (c *CLI) runServe(ctx context.Context, addr, workRoot string, rt runtimeFlags) error {
	if rt.bridgeDir == "" {
		return errors.New(errors.ErrCodeConfig, "no runtime bridge: pass --bridge-dir or set %s", bridgeDirEnv)
	}
	runner, cleanup, err := c.newRunner(ctx, rt)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(runner, workRoot, c.Logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	c.Logger.Info("Listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// server is the HTTP API.
type server struct {
	runner   *pipeline.Runner
	workRoot string
	maxBody  int64
	logger   *log.Logger
}

func newServer(r *pipeline.Runner, workRoot string, l *log.Logger) *server {
	return &server{runner: r, workRoot: workRoot, maxBody: defaultMaxBody, logger: l}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/build", s.handleBuild)
	return r
}

// requestLogger attaches the server logger to the request context and logs
// each request once it completes.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		l := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), l)))
		l.Info("Request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start).Round(time.Millisecond))
	})
}

// buildFile is a project file in a build request.
type buildFile struct {
	Path string      `json:"path"`
	Data []byte      `json:"data"`
	Mode os.FileMode `json:"mode,omitempty"`
}

// buildRequest is the body of POST /build.
type buildRequest struct {
	Entrypoint string          `json:"entrypoint"`
	Files      []buildFile     `json:"files"`
	Config     pipeline.Config `json:"config"`
}

// staticInfo describes a static output.
type staticInfo struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
}

// buildResponse is the body of a successful POST /build.
type buildResponse struct {
	BuildID    string       `json:"buildId"`
	Lambda     lambdaInfo   `json:"lambda"`
	Statics    []staticInfo `json:"statics"`
	Zip        []byte       `json:"zip,omitempty"`
	DurationMS int64        `json:"durationMs"`
}

type errorResponse struct {
	BuildID string `json:"buildId,omitempty"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}

func (s *server) handleBuild(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	l := loggerFromContext(r.Context()).With("build_id", id)

	var req buildRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, id, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if req.Entrypoint == "" {
		req.Entrypoint = pipeline.DefaultEntrypoint
	}

	m := files.NewManifest()
	for _, f := range req.Files {
		if m.Has(f.Path) {
			writeError(w, id, errors.New(errors.ErrCodeInvalidManifest, "duplicate file %q", f.Path))
			return
		}
		m.Set(f.Path, files.FileBlob{Data: f.Data, FileMode: f.Mode})
	}

	workPath, err := os.MkdirTemp(s.workRoot, "now-php-"+id+"-")
	if err != nil {
		writeError(w, id, errors.Wrap(errors.ErrCodeInternal, err, "create work directory"))
		return
	}
	defer os.RemoveAll(workPath)

	l.Info("Building", "entrypoint", req.Entrypoint, "files", m.Len())
	result, err := s.runner.Build(r.Context(), pipeline.Request{
		Files:      m,
		Entrypoint: req.Entrypoint,
		WorkPath:   workPath,
		Config:     req.Config,
	})
	if err != nil {
		l.Error("Build failed", "err", err)
		writeError(w, id, err)
		return
	}

	entry, fn := result.Lambda()
	resp := buildResponse{
		BuildID:    id,
		Lambda:     newLambdaInfo(entry, fn),
		Statics:    []staticInfo{},
		DurationMS: result.Stats.Duration.Milliseconds(),
	}
	for _, e := range result.Statics().Entries() {
		d, err := files.Digest(e.File)
		if err != nil {
			writeError(w, id, errors.Wrap(errors.ErrCodeInternal, err, "digest %s", e.Name))
			return
		}
		resp.Statics = append(resp.Statics, staticInfo{Path: e.Name, Digest: d})
	}
	if r.URL.Query().Get("zip") == "1" {
		resp.Zip = fn.Zip
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps an error code to an HTTP status.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidManifest, errors.ErrCodeInvalidPath,
		errors.ErrCodeMissingEntrypoint, errors.ErrCodeConfig:
		return http.StatusBadRequest
	case errors.ErrCodeInstall:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeLambdaTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeTransport, errors.ErrCodeHTTPStatus:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, id string, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, statusFor(code), errorResponse{
		BuildID: id,
		Code:    string(code),
		Error:   errors.UserMessage(err),
		Detail:  err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "write response:", err)
	}
}
