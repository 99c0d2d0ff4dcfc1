package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/jobs"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/results"
)

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "card.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestJobFlags(t *testing.T) {
	dir := t.TempDir()
	imgPath := writePNG(t, dir)

	t.Run("text mode", func(t *testing.T) {
		job, err := (&jobFlags{}).job(imgPath)
		if err != nil {
			t.Fatal(err)
		}
		if job.Mode != jobs.ModeText || job.Schema != nil || job.Filename != "card.png" {
			t.Errorf("job = %+v", job)
		}
	})

	t.Run("preset", func(t *testing.T) {
		job, err := (&jobFlags{docType: "nid_front"}).job(imgPath)
		if err != nil {
			t.Fatal(err)
		}
		if job.Mode != jobs.ModeSchema || job.Schema["nid_no"] == "" {
			t.Errorf("job = %+v", job)
		}
	})

	t.Run("unknown preset", func(t *testing.T) {
		if _, err := (&jobFlags{docType: "passport"}).job(imgPath); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("schema file", func(t *testing.T) {
		for name, body := range map[string]string{
			"fields.yaml": "name: Full Name\ndob: Date of Birth\n",
			"fields.json": `{"name": "Full Name", "dob": "Date of Birth"}`,
		} {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			schema, err := (&jobFlags{schemaFile: path}).schema()
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if len(schema) != 2 || schema["dob"] != "Date of Birth" {
				t.Errorf("%s: schema = %v", name, schema)
			}
		}
	})

	t.Run("empty schema file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := (&jobFlags{schemaFile: path}).schema(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("missing image", func(t *testing.T) {
		if _, err := (&jobFlags{}).job(filepath.Join(dir, "nope.png")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "debug", "json")
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("hello", "job_id", "j1")
	if !strings.Contains(buf.String(), `"job_id":"j1"`) {
		t.Errorf("log = %s", buf.String())
	}

	if _, err := newLogger(io.Discard, "loud", "text"); err == nil {
		t.Error("expected level error")
	}
	if _, err := newLogger(io.Discard, "info", "xml"); err == nil {
		t.Error("expected format error")
	}
}

func TestFetchResult(t *testing.T) {
	ctx := context.Background()
	store := results.NewMemory(0)

	if _, err := fetchResult(ctx, store, "j1", 0); !errors.Is(err, results.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := fetchResult(ctx, store, "j1", 100*time.Millisecond); !errors.Is(err, results.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after wait", err)
	}

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = store.Save(ctx, "j2", []byte(`{"text":"ok"}`))
	}()
	got, err := fetchResult(ctx, store, "j2", 5*time.Second)
	if err != nil {
		t.Fatalf("fetchResult() error = %v", err)
	}
	if string(got) != `{"text":"ok"}` {
		t.Errorf("payload = %s", got)
	}
}

func TestProcessCommand(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Name: John"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	imgPath := writePNG(t, dir)
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf(`endpoints:
  primary:
    base_url: %s
    family: vllm
pipeline:
  judge_enabled: false
retry:
  max_retries: -1
`, srv.URL)
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"process", imgPath, "--config", cfgPath, "--home", dir, "-o", "json"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if calls.Load() != 4 {
		t.Errorf("model calls = %d, want 4", calls.Load())
	}
	if !strings.Contains(out.String(), `"text": "Name: John`) {
		t.Errorf("output = %s", out.String())
	}
}
