package fishspeech_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"voxdub/internal/services"
	"voxdub/internal/tts"
	"voxdub/internal/tts/fishspeech"
)

type fakeServer struct {
	mu         sync.Mutex
	healthy    bool
	jsonBodies []map[string]any
	formBodies []map[string]string
	uploads    []string
	references []string
}

func (s *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /v1/tts", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			fields := map[string]string{}
			for key, values := range r.MultipartForm.Value {
				fields[key] = values[0]
			}
			if file, header, err := r.FormFile("reference_audio"); err == nil {
				data, _ := io.ReadAll(file)
				fields["reference_audio"] = header.Filename + ":" + string(data)
				file.Close()
			}
			s.formBodies = append(s.formBodies, fields)
		} else {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode json: %v", err)
			}
			s.jsonBodies = append(s.jsonBodies, body)
			if streaming, _ := body["streaming"].(bool); streaming {
				flusher := w.(http.Flusher)
				for i := 0; i < 4; i++ {
					_, _ = w.Write([]byte(strings.Repeat("s", 5000)))
					flusher.Flush()
				}
				return
			}
		}
		_, _ = w.Write([]byte("RIFF-speech"))
	})
	mux.HandleFunc("POST /v1/references/add", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("audio"); err != nil {
			t.Errorf("missing audio part: %v", err)
		}
		s.uploads = append(s.uploads, r.FormValue("voice_id")+"|"+r.FormValue("text"))
		s.references = append(s.references, r.FormValue("voice_id"))
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("GET /v1/references/list", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(s.references)
	})
	mux.HandleFunc("DELETE /v1/references/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := r.PathValue("id")
		for i, ref := range s.references {
			if ref == id {
				s.references = append(s.references[:i], s.references[i+1:]...)
				return
			}
		}
		http.NotFound(w, r)
	})
	return mux
}

func newProvider(t *testing.T, srv *httptest.Server, opts ...fishspeech.Option) *fishspeech.Provider {
	t.Helper()
	client := fishspeech.NewClient(srv.URL+"/", 5*time.Second, time.Second)
	p, err := fishspeech.New(fishspeech.Config{
		MaxNewTokens:      1024,
		TopP:              0.7,
		Temperature:       0.7,
		RepetitionPenalty: 1.2,
	}, client, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestAvailabilityFollowsHealth(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	client := fishspeech.NewClient(srv.URL, time.Second, time.Second)

	if err := fishspeech.Available(client)(context.Background()); !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected unhealthy server to be unavailable, got %v", err)
	}
	fake.mu.Lock()
	fake.healthy = true
	fake.mu.Unlock()
	if err := fishspeech.Available(client)(context.Background()); err != nil {
		t.Fatalf("expected available, got %v", err)
	}
	empty := fishspeech.NewClient("", time.Second, time.Second)
	if err := fishspeech.Available(empty)(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without url, got %v", err)
	}
}

func TestSynthesizeJSONWithEmotion(t *testing.T) {
	fake := &fakeServer{healthy: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	p := newProvider(t, srv)

	out := filepath.Join(t.TempDir(), "out.wav")
	res, err := p.Synthesize(context.Background(), tts.Request{Text: "hello", Language: "en-US", Emotion: "Happy", OutputPath: out})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Bytes != int64(len("RIFF-speech")) {
		t.Fatalf("unexpected size %d", res.Bytes)
	}
	body := fake.jsonBodies[0]
	if body["text"] != "[happy]hello[/happy]" {
		t.Fatalf("expected emotion markers, got %v", body["text"])
	}
	if body["language"] != "english" || body["max_new_tokens"] != float64(1024) || body["repetition_penalty"] != 1.2 {
		t.Fatalf("unexpected payload %v", body)
	}
	if _, ok := body["reference_id"]; ok {
		t.Fatalf("reference_id should be omitted: %v", body)
	}
}

func TestSynthesizeStreaming(t *testing.T) {
	fake := &fakeServer{healthy: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	p := newProvider(t, srv)

	out := filepath.Join(t.TempDir(), "stream.wav")
	res, err := p.Synthesize(context.Background(), tts.Request{Text: "hello", Language: "en", Streaming: true, OutputPath: out})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Bytes != 20000 {
		t.Fatalf("expected 20000 streamed bytes, got %d", res.Bytes)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() != 20000 {
		t.Fatalf("unexpected output file: %v %v", info, err)
	}
}

func TestSynthesizeWithVoices(t *testing.T) {
	fake := &fakeServer{healthy: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	refPath := filepath.Join(t.TempDir(), "narrator.wav")
	if err := os.WriteFile(refPath, []byte("ref-audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	lookup := func(_ context.Context, id string) (fishspeech.Voice, error) {
		switch id {
		case "remote":
			return fishspeech.Voice{ID: "remote", Registered: true}, nil
		case "local":
			return fishspeech.Voice{ID: "local", AudioPath: refPath, Transcript: "the quick fox"}, nil
		}
		return fishspeech.Voice{}, services.Wrap(services.ErrNotFound, "voices", "get", "no such voice", nil)
	}
	p := newProvider(t, srv, fishspeech.WithVoiceLookup(lookup))
	dir := t.TempDir()

	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "a", Language: "en", VoiceID: "remote", OutputPath: filepath.Join(dir, "1.wav")}); err != nil {
		t.Fatalf("registered voice: %v", err)
	}
	if fake.jsonBodies[0]["reference_id"] != "remote" {
		t.Fatalf("expected reference_id, got %v", fake.jsonBodies[0])
	}

	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "b", Language: "ja", VoiceID: "local", OutputPath: filepath.Join(dir, "2.wav")}); err != nil {
		t.Fatalf("local voice: %v", err)
	}
	form := fake.formBodies[0]
	if form["reference_audio"] != "narrator.wav:ref-audio" || form["reference_text"] != "the quick fox" {
		t.Fatalf("unexpected multipart fields %v", form)
	}
	if form["language"] != "japanese" || form["streaming"] != "false" || form["top_p"] != "0.7" {
		t.Fatalf("unexpected sampling fields %v", form)
	}

	_, err := p.Synthesize(context.Background(), tts.Request{Text: "c", Language: "en", VoiceID: "ghost", OutputPath: filepath.Join(dir, "3.wav")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown voice, got %v", err)
	}
}

func TestReferenceManagement(t *testing.T) {
	fake := &fakeServer{healthy: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()
	client := fishspeech.NewClient(srv.URL, time.Second, time.Second)
	ctx := context.Background()

	audio := filepath.Join(t.TempDir(), "v.wav")
	if err := os.WriteFile(audio, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := client.AddReference(ctx, "narrator", audio, "hello there"); err != nil {
		t.Fatalf("AddReference: %v", err)
	}
	if fake.uploads[0] != "narrator|hello there" {
		t.Fatalf("unexpected upload %q", fake.uploads[0])
	}
	refs, err := client.ListReferences(ctx)
	if err != nil {
		t.Fatalf("ListReferences: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != "narrator" {
		t.Fatalf("unexpected references %+v", refs)
	}
	if err := client.DeleteReference(ctx, "narrator"); err != nil {
		t.Fatalf("DeleteReference: %v", err)
	}
	if err := client.DeleteReference(ctx, "narrator"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if err := client.AddReference(ctx, "x", filepath.Join(t.TempDir(), "missing.wav"), ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing audio, got %v", err)
	}
}

func TestWrapEmotion(t *testing.T) {
	if got := fishspeech.WrapEmotion("hi", "sad"); got != "[sad]hi[/sad]" {
		t.Fatalf("unexpected %q", got)
	}
	if got := fishspeech.WrapEmotion("hi", "joyful"); got != "hi" {
		t.Fatalf("unknown emotion should not wrap, got %q", got)
	}
	d := fishspeech.Descriptor()
	if len(d.Emotions) != 10 || !d.Capabilities.Has(tts.CapEmotionSynthesis) {
		t.Fatalf("unexpected descriptor %+v", d)
	}
}
