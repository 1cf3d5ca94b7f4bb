package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookscribe/internal/api"
	"bookscribe/internal/config"
	"bookscribe/internal/jobs"
	"bookscribe/internal/logging"
	"bookscribe/internal/services"
	"bookscribe/internal/speed"
	"bookscribe/internal/transcriber"
	"bookscribe/internal/whisper"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/capabilities", srv.handleCapabilities)
	mux.HandleFunc("GET /api/books", srv.handleBooks)
	mux.HandleFunc("GET /api/books/{book}/files", srv.handleBookFiles)
	mux.HandleFunc("POST /api/transcribe", srv.handleTranscribe)
	mux.HandleFunc("POST /api/transcribe/all", srv.handleTranscribeAll)
	mux.HandleFunc("GET /api/jobs", srv.handleJobs)
	mux.HandleFunc("GET /api/jobs/{book}/{file}/log", srv.handleJobLog)
	mux.HandleFunc("DELETE /api/jobs/{book}/{file}", srv.handleJobCancel)
	mux.HandleFunc("POST /api/speed-test", srv.handleSpeedTest)
	mux.HandleFunc("GET /api/estimate", srv.handleEstimate)
	mux.HandleFunc("GET /files/{book}/{file}", srv.handleFile)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      apiWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// apiWriteTimeout bounds slow readers on ordinary responses. Handlers that
// block on transcription work clear the deadline per response instead.
var apiWriteTimeout = 30 * time.Second

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	checks := make([]api.DependencyStatus, len(status.Checks))
	for i, check := range status.Checks {
		checks[i] = api.DependencyStatus{Name: check.Name, Passed: check.Passed, Detail: check.Detail}
	}
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		LibraryDir:   status.LibraryDir,
		SpeedDBPath:  status.SpeedDBPath,
		LockFilePath: status.LockFilePath,
		Checks:       checks,
	})
}

func (s *apiServer) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	caps := s.daemon.tr.ProbeCapabilities(r.Context())
	s.writeJSON(w, http.StatusOK, api.CapabilitiesResponse{Capabilities: caps})
}

func (s *apiServer) handleBooks(w http.ResponseWriter, r *http.Request) {
	lib := s.daemon.tr.Library()
	books, err := lib.ListBooks()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	summaries := make([]api.BookSummary, 0, len(books))
	for _, book := range books {
		files, err := lib.ListAudioFiles(book.Name)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		summaries = append(summaries, api.BookSummary{
			Name:         book.Name,
			DisplayTitle: book.DisplayTitle,
			FileCount:    len(files),
		})
	}
	s.writeJSON(w, http.StatusOK, api.BookListResponse{Books: summaries})
}

func (s *apiServer) handleBookFiles(w http.ResponseWriter, r *http.Request) {
	book := r.PathValue("book")
	files, err := s.daemon.tr.Library().ListAudioFiles(book)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	statuses := make([]transcriber.FileStatus, 0, len(files))
	for _, file := range files {
		status, err := s.daemon.tr.FileStatus(r.Context(), book, file)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		statuses = append(statuses, status)
	}
	s.writeJSON(w, http.StatusOK, api.FileListResponse{Book: book, Files: statuses})
}

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req api.TranscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	jobID, err := s.daemon.tr.StartTranscription(r.Context(), req.Book, req.File,
		s.requestOptions(req.Model, req.WordTimestamps, req.HighlightWords))
	switch {
	case errors.Is(err, transcriber.ErrCaptionExists):
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "exists"})
	case errors.Is(err, jobs.ErrAlreadyRunning):
		s.writeError(w, http.StatusConflict, "transcription already running for this file")
	case err != nil:
		s.writeServiceError(w, err)
	default:
		s.writeJSON(w, http.StatusAccepted, api.TranscribeResponse{JobID: jobID})
	}
}

func (s *apiServer) handleTranscribeAll(w http.ResponseWriter, r *http.Request) {
	var req api.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	batch, err := s.daemon.tr.StartBatch(r.Context(), req.Book,
		s.requestOptions(req.Model, req.WordTimestamps, req.HighlightWords),
		req.Parallel, req.MaxWorkers)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.BatchResponse{BatchID: batch.ID, Counts: batch.Counts()})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: s.daemon.tr.Jobs().List()})
}

func (s *apiServer) handleJobLog(w http.ResponseWriter, r *http.Request) {
	book := r.PathValue("book")
	file := r.PathValue("file")
	cursor, _ := strconv.Atoi(r.URL.Query().Get("cursor"))

	lines, next, state, ok := s.daemon.tr.PollLog(book, file, cursor)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no job for this file")
		return
	}
	resp := api.JobLogResponse{Lines: lines, Next: next, State: state}
	if view, ok := s.daemon.tr.JobStatus(book, file); ok && state.Terminal() {
		resp.ExitCode = view.ExitCode
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.tr.CancelJob(r.PathValue("book"), r.PathValue("file")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *apiServer) handleSpeedTest(w http.ResponseWriter, r *http.Request) {
	var req api.SpeedTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The handler blocks for the whole measured run, which routinely takes
	// longer than the server write timeout. Clear the deadline so the result
	// still reaches the caller.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.log().Warn("could not clear write deadline", logging.Error(err))
	}

	result, err := s.daemon.tr.RunSpeedTest(r.Context(), req.Book, req.File,
		s.requestOptions(req.Model, req.WordTimestamps, req.HighlightWords))
	switch {
	case errors.Is(err, jobs.ErrAlreadyRunning):
		s.writeError(w, http.StatusConflict, "a speed test is already running for this book")
	case errors.Is(err, speed.ErrUnmeasurable):
		s.writeError(w, http.StatusUnprocessableEntity, "speed test timing was unmeasurable")
	case err != nil:
		s.writeServiceError(w, err)
	default:
		s.writeJSON(w, http.StatusOK, api.SpeedTestResponse{Result: result})
	}
}

func (s *apiServer) handleEstimate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	book := query.Get("book")
	file := query.Get("file")
	opts := s.daemon.tr.Defaults()
	if model := query.Get("model"); model != "" {
		opts.Model = model
	}
	if query.Has("word_timestamps") {
		opts.WordTimestamps = parseBoolParam(query.Get("word_timestamps"))
	}
	if query.Has("highlight_words") {
		opts.HighlightWords = parseBoolParam(query.Get("highlight_words"))
	}

	seconds, err := s.daemon.tr.Estimate(r.Context(), book, file, opts)
	if errors.Is(err, speed.ErrNoEstimate) {
		s.writeError(w, http.StatusNotFound, "no estimate available; run a speed test first")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EstimateResponse{Book: book, File: file, EstimatedSeconds: seconds})
}

func (s *apiServer) handleFile(w http.ResponseWriter, r *http.Request) {
	path, err := s.daemon.tr.Library().ResolvePath(r.PathValue("book"), r.PathValue("file"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	http.ServeFile(w, r, path)
}

// requestOptions starts from the configured whisper options and applies the
// overrides a request actually carried.
func (s *apiServer) requestOptions(model string, wordTimestamps, highlightWords *bool) whisper.Options {
	opts := s.daemon.tr.Defaults()
	if model != "" {
		opts.Model = model
	}
	if wordTimestamps != nil {
		opts.WordTimestamps = *wordTimestamps
	}
	if highlightWords != nil {
		opts.HighlightWords = *highlightWords
	}
	return opts
}

func parseBoolParam(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && parsed
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrTimeout):
		s.writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, services.ErrExternalTool):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
