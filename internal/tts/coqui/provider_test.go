package coqui_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"voxdub/internal/services"
	"voxdub/internal/tts"
	"voxdub/internal/tts/coqui"
)

type fakeTempo struct {
	calls  int
	factor float64
}

func (f *fakeTempo) AdjustTempo(_ context.Context, src, dest string, factor float64) error {
	f.calls++
	f.factor = factor
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func writingRunner(args *[]string) func(context.Context, string, ...string) ([]byte, error) {
	return func(_ context.Context, name string, a ...string) ([]byte, error) {
		*args = append([]string{name}, a...)
		out := a[slices.Index(a, "--out_path")+1]
		return nil, os.WriteFile(out, []byte("RIFFwave"), 0o644)
	}
}

func TestSynthesizeUsesLanguageModel(t *testing.T) {
	var args []string
	p := coqui.New(coqui.Config{Binary: "tts"}, nil, coqui.WithRunner(writingRunner(&args)))
	out := filepath.Join(t.TempDir(), "job_dubbed.wav")

	res, err := p.Synthesize(context.Background(), tts.Request{Text: "hola", Language: "es", OutputPath: out})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Path != out || res.Bytes == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if args[0] != "tts" || !slices.Contains(args, coqui.ModelSpanish) {
		t.Fatalf("unexpected args %v", args)
	}
	if slices.Contains(args, "--language_idx") {
		t.Fatalf("dedicated model should not get a language index: %v", args)
	}
}

func TestSynthesizeMultilingualAndGPU(t *testing.T) {
	var args []string
	p := coqui.New(coqui.Config{UseGPU: true}, nil, coqui.WithRunner(writingRunner(&args)))
	out := filepath.Join(t.TempDir(), "pt.wav")
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "olá", Language: "pt", OutputPath: out}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	idx := slices.Index(args, "--language_idx")
	if idx < 0 || args[idx+1] != "pt-br" {
		t.Fatalf("expected pt-br language index, got %v", args)
	}
	if !slices.Contains(args, coqui.ModelMultilingual) || !slices.Contains(args, "--use_cuda") {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestSynthesizeAppliesSpeed(t *testing.T) {
	var args []string
	tempo := &fakeTempo{}
	p := coqui.New(coqui.Config{}, tempo, coqui.WithRunner(writingRunner(&args)))
	out := filepath.Join(t.TempDir(), "fast.wav")
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "hello", Language: "en", Speed: 1.5, OutputPath: out}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if tempo.calls != 1 || tempo.factor != 1.5 {
		t.Fatalf("expected one tempo call at 1.5, got %d at %v", tempo.calls, tempo.factor)
	}
	raw := args[slices.Index(args, "--out_path")+1]
	if raw == out {
		t.Fatal("expected intermediate render path")
	}
	if _, err := os.Stat(raw); !os.IsNotExist(err) {
		t.Fatalf("expected intermediate file removed, stat err=%v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected final output: %v", err)
	}
}

func TestSynthesizeFailureIsExternalToolError(t *testing.T) {
	p := coqui.New(coqui.Config{}, nil, coqui.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Loading model\nRuntimeError: CUDA out of memory"), errors.New("exit status 1")
	}))
	_, err := p.Synthesize(context.Background(), tts.Request{Text: "hi", Language: "en", OutputPath: filepath.Join(t.TempDir(), "x.wav")})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestSynthesizeWithoutOutputFails(t *testing.T) {
	p := coqui.New(coqui.Config{}, nil, coqui.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, nil
	}))
	_, err := p.Synthesize(context.Background(), tts.Request{Text: "hi", Language: "en", OutputPath: filepath.Join(t.TempDir(), "x.wav")})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestHealthCheckAndDescriptor(t *testing.T) {
	p := coqui.New(coqui.Config{Binary: "missing-tts"}, nil, coqui.WithLookPath(func(string) (string, error) {
		return "", errors.New("not found")
	}))
	if err := p.HealthCheck(context.Background()); !errors.Is(err, services.ErrResource) {
		t.Fatalf("expected resource error, got %v", err)
	}
	d := coqui.Descriptor()
	if !d.Capabilities.Has(tts.CapOffline) || d.Capabilities.Has(tts.CapEmotionSynthesis) {
		t.Fatalf("unexpected capabilities %v", d.Capabilities)
	}
	for _, lang := range []string{"en", "es", "fr", "de", "pt"} {
		if !tts.SupportsLanguage(d.Languages, lang) {
			t.Fatalf("expected %s supported", lang)
		}
	}
}
