package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"bookscribe/internal/api"
	"bookscribe/internal/config"
	"bookscribe/internal/daemon"
	"bookscribe/internal/library"
	"bookscribe/internal/logging"
	"bookscribe/internal/testsupport"
	"bookscribe/internal/transcriber"
)

func startDaemon(t *testing.T) (*daemon.Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	lib, err := library.New(cfg.Paths.LibraryDir)
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	store := testsupport.MustOpenSpeedStore(t, cfg)
	tr := transcriber.New(cfg, lib, store, logging.NewNop())

	d, err := daemon.New(cfg, tr, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, cfg
}

func optBool(v bool) *bool {
	return &v
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	d, cfg := startDaemon(t)

	lib, err := library.New(cfg.Paths.LibraryDir)
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	store := testsupport.MustOpenSpeedStore(t, cfg)
	second, err := daemon.New(cfg, transcriber.New(cfg, lib, store, logging.NewNop()), store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon acquired the lock")
	}

	d.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second daemon failed after first stopped: %v", err)
	}
	second.Stop()
}

func TestCapabilitiesEndpoint(t *testing.T) {
	d, _ := startDaemon(t)

	var resp api.CapabilitiesResponse
	status := getJSON(t, "http://"+d.Addr()+"/api/capabilities", &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !resp.Capabilities.Installed || !resp.Capabilities.WordTimestamps {
		t.Fatalf("capabilities = %+v, want stubbed flags detected", resp.Capabilities)
	}
}

func TestBooksAndFilesEndpoints(t *testing.T) {
	d, cfg := startDaemon(t)
	testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "moby_dick", "ch1.mp3", 2048)
	testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "moby_dick", "ch2.mp3", 2048)

	var books api.BookListResponse
	if status := getJSON(t, "http://"+d.Addr()+"/api/books", &books); status != http.StatusOK {
		t.Fatalf("books status = %d", status)
	}
	if len(books.Books) != 1 || books.Books[0].Name != "moby_dick" {
		t.Fatalf("books = %+v", books.Books)
	}
	if books.Books[0].DisplayTitle != "Moby Dick" {
		t.Fatalf("display title = %q", books.Books[0].DisplayTitle)
	}
	if books.Books[0].FileCount != 2 {
		t.Fatalf("file count = %d", books.Books[0].FileCount)
	}

	var files api.FileListResponse
	if status := getJSON(t, "http://"+d.Addr()+"/api/books/moby_dick/files", &files); status != http.StatusOK {
		t.Fatalf("files status = %d", status)
	}
	if len(files.Files) != 2 || files.Files[0].File != "ch1.mp3" {
		t.Fatalf("files = %+v", files.Files)
	}

	if status := getJSON(t, "http://"+d.Addr()+"/api/books/missing_book/files", nil); status != http.StatusNotFound {
		t.Fatalf("missing book status = %d, want 404", status)
	}
}

func TestTranscribeFlow(t *testing.T) {
	d, cfg := startDaemon(t)
	testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "moby_dick", "ch1.mp3", 2048)
	base := "http://" + d.Addr()

	var accepted api.TranscribeResponse
	status := postJSON(t, base+"/api/transcribe", api.TranscribeRequest{
		Book: "moby_dick", File: "ch1.mp3", WordTimestamps: optBool(true),
	}, &accepted)
	if status != http.StatusAccepted {
		t.Fatalf("transcribe status = %d, want 202", status)
	}
	if accepted.JobID == "" {
		t.Fatal("empty job id")
	}

	// Poll the log until the job is terminal; the concatenated reads must
	// contain the stub's progress output.
	var all []string
	cursor := 0
	deadline := time.Now().Add(10 * time.Second)
	for {
		var logResp api.JobLogResponse
		url := fmt.Sprintf("%s/api/jobs/moby_dick/ch1.mp3/log?cursor=%d", base, cursor)
		if status := getJSON(t, url, &logResp); status != http.StatusOK {
			t.Fatalf("log status = %d", status)
		}
		all = append(all, logResp.Lines...)
		cursor = logResp.Next
		if logResp.State.Terminal() {
			if logResp.ExitCode == nil || *logResp.ExitCode != 0 {
				t.Fatalf("exit code = %v, want 0", logResp.ExitCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never finished")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(all) == 0 || all[0] != "Detecting language" {
		t.Fatalf("log lines = %v", all)
	}

	// The caption now exists, so a resubmission reports "exists".
	var exists map[string]string
	status = postJSON(t, base+"/api/transcribe", api.TranscribeRequest{
		Book: "moby_dick", File: "ch1.mp3",
	}, &exists)
	if status != http.StatusOK || exists["status"] != "exists" {
		t.Fatalf("resubmit status = %d body = %v, want 200 exists", status, exists)
	}
}

func TestBatchEndpoint(t *testing.T) {
	d, cfg := startDaemon(t)
	testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "moby_dick", "ch1.mp3", 2048)
	testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "moby_dick", "ch2.mp3", 2048)
	base := "http://" + d.Addr()

	var batch api.BatchResponse
	status := postJSON(t, base+"/api/transcribe/all", api.BatchRequest{
		Book: "moby_dick", Parallel: true, MaxWorkers: 2,
	}, &batch)
	if status != http.StatusAccepted {
		t.Fatalf("batch status = %d, want 202", status)
	}
	if batch.BatchID == "" {
		t.Fatal("empty batch id")
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		var files api.FileListResponse
		getJSON(t, base+"/api/books/moby_dick/files", &files)
		captioned := 0
		for _, file := range files.Files {
			if file.HasCaption {
				captioned++
			}
		}
		if captioned == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch never captioned all files: %+v", files.Files)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSpeedTestAndEstimateEndpoints(t *testing.T) {
	d, cfg := startDaemon(t)
	testsupport.WriteAudioFile(t, cfg.Paths.LibraryDir, "moby_dick", "ch1.mp3", 2048)
	base := "http://" + d.Addr()

	estimateURL := base + "/api/estimate?book=moby_dick&file=ch1.mp3&word_timestamps=true"
	if status := getJSON(t, estimateURL, nil); status != http.StatusNotFound {
		t.Fatalf("estimate before speed test = %d, want 404", status)
	}

	var speedResp api.SpeedTestResponse
	status := postJSON(t, base+"/api/speed-test", api.SpeedTestRequest{
		Book: "moby_dick", WordTimestamps: optBool(true),
	}, &speedResp)
	if status != http.StatusOK {
		t.Fatalf("speed test status = %d", status)
	}
	if speedResp.Result.Ratio <= 0 {
		t.Fatalf("ratio = %v, want positive", speedResp.Result.Ratio)
	}

	var estimate api.EstimateResponse
	if status := getJSON(t, estimateURL, &estimate); status != http.StatusOK {
		t.Fatalf("estimate after speed test = %d, want 200", status)
	}
	if estimate.EstimatedSeconds <= 0 {
		t.Fatalf("estimated seconds = %v, want positive", estimate.EstimatedSeconds)
	}
}

func TestStatusEndpoint(t *testing.T) {
	d, _ := startDaemon(t)

	var status api.StatusResponse
	if code := getJSON(t, "http://"+d.Addr()+"/api/status", &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if !status.Running {
		t.Fatal("Running = false")
	}
	if len(status.Checks) == 0 {
		t.Fatal("no preflight checks reported")
	}
}
