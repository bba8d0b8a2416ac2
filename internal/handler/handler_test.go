package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmorgan81/getimg/image"
	"github.com/dmorgan81/getimg/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	result *image.Result
	err    error

	mu    sync.Mutex
	calls []any
	ctxs  []context.Context
}

func (g *fakeGenerator) record(ctx context.Context, params any) (*image.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, params)
	g.ctxs = append(g.ctxs, ctx)
	return g.result, g.err
}

func (g *fakeGenerator) TextToImage(ctx context.Context, p image.TextToImageParams) (*image.Result, error) {
	return g.record(ctx, p)
}

func (g *fakeGenerator) ImageToImage(ctx context.Context, p image.ImageToImageParams) (*image.Result, error) {
	return g.record(ctx, p)
}

func (g *fakeGenerator) ControlNet(ctx context.Context, p image.ControlNetParams) (*image.Result, error) {
	return g.record(ctx, p)
}

func (g *fakeGenerator) Repaint(ctx context.Context, p image.RepaintParams) (*image.Result, error) {
	return g.record(ctx, p)
}

func (g *fakeGenerator) Edit(ctx context.Context, p image.EditParams) (*image.Result, error) {
	return g.record(ctx, p)
}

type memStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	uploads []store.UploadParams
}

func (s *memStore) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, errors.New("read " + name + ": not found")
	}
	return data, nil
}

func (s *memStore) Upload(_ context.Context, params store.UploadParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, params)
	return nil
}

type fakeInvalidator struct {
	paths [][]string
	err   error
}

func (i *fakeInvalidator) Invalidate(_ context.Context, paths []string) error {
	i.paths = append(i.paths, paths)
	return i.err
}

func newTestHandler(gen *fakeGenerator, st *memStore, inv *fakeInvalidator) *Handler {
	return &Handler{
		generator:   gen,
		loader:      st,
		uploader:    st,
		invalidator: inv,
		model:       "lcm-realistic-vision-v5-1",
	}
}

func result() *image.Result {
	return &image.Result{Image: []byte("A"), Seed: lo.ToPtr[int64](512), Cost: lo.ToPtr(0.002)}
}

func TestTextToImage(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	st := &memStore{}
	inv := &fakeInvalidator{}
	h := newTestHandler(gen, st, inv)

	out, err := h.TextToImage(context.Background(), TextToImageInput{
		Params: image.TextToImageParams{Prompt: "crab", Width: 512, Height: 512, Steps: 4, OutputFormat: "png"},
		Out:    "t2i.png",
	})
	require.NoError(t, err)
	assert.Equal(t, Output{Out: "t2i.png", Seed: lo.ToPtr[int64](512), Cost: lo.ToPtr(0.002), Bytes: 1}, out)

	require.Len(t, st.uploads, 1)
	upload := st.uploads[0]
	assert.Equal(t, "t2i.png", upload.Name)
	assert.Equal(t, []byte("A"), upload.Data)
	assert.Equal(t, "image/png", upload.ContentType)
	assert.Equal(t, map[string]string{
		"operation": "t2i",
		"model":     "lcm-realistic-vision-v5-1",
		"prompt":    "crab",
		"seed":      "512",
		"cost":      "0.002",
	}, upload.Metadata)
	assert.Empty(t, inv.paths)
}

func TestImageToImageLoadsInput(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	st := &memStore{files: map[string][]byte{"in.png": []byte("img")}}
	h := newTestHandler(gen, st, &fakeInvalidator{})

	_, err := h.ImageToImage(context.Background(), ImageToImageInput{
		Params: image.ImageToImageParams{Prompt: "crab", Steps: 4, OutputFormat: "png"},
		Image:  "in.png",
		Out:    "i2i.png",
	})
	require.NoError(t, err)

	require.Len(t, gen.calls, 1)
	params := gen.calls[0].(image.ImageToImageParams)
	assert.Equal(t, []byte("img"), params.Image)
	assert.Equal(t, "crab", params.Prompt)
}

func TestRepaintLoadsImageAndMask(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	st := &memStore{files: map[string][]byte{
		"in.png":   []byte("img"),
		"mask.png": []byte("mask"),
	}}
	h := newTestHandler(gen, st, &fakeInvalidator{})

	_, err := h.Repaint(context.Background(), RepaintInput{
		Params:    image.RepaintParams{Prompt: "city", Seed: 1, OutputFormat: "png"},
		Image:     "in.png",
		MaskImage: "mask.png",
		Out:       "edited_image.png",
	})
	require.NoError(t, err)

	require.Len(t, gen.calls, 1)
	params := gen.calls[0].(image.RepaintParams)
	assert.Equal(t, []byte("img"), params.Image)
	assert.Equal(t, []byte("mask"), params.MaskImage)
	assert.Equal(t, "stable-diffusion-v1-5-inpainting", st.uploads[0].Metadata["model"])
}

func TestControlNetMetadata(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	st := &memStore{files: map[string][]byte{"edges.png": []byte("img")}}
	h := newTestHandler(gen, st, &fakeInvalidator{})

	_, err := h.ControlNet(context.Background(), ControlNetInput{
		Params: image.ControlNetParams{ControlNet: "canny-1.1", Prompt: "landscape", OutputFormat: "jpeg"},
		Image:  "edges.png",
		Out:    "cnet.jpeg",
	})
	require.NoError(t, err)

	upload := st.uploads[0]
	assert.Equal(t, "image/jpeg", upload.ContentType)
	assert.Equal(t, "canny-1.1", upload.Metadata["controlnet"])
	assert.Equal(t, "stable-diffusion-v1-5", upload.Metadata["model"])
}

func TestEditModelOverride(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	st := &memStore{files: map[string][]byte{"in.png": []byte("img")}}
	h := newTestHandler(gen, st, &fakeInvalidator{})

	_, err := h.Edit(context.Background(), EditInput{
		Params: image.EditParams{Model: "custom", Prompt: "horse on mars", Seed: 25, OutputFormat: "png"},
		Image:  "in.png",
		Out:    "edited_image.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom", st.uploads[0].Metadata["model"])
}

func TestMissingSeedAndCostOmittedFromMetadata(t *testing.T) {
	gen := &fakeGenerator{result: &image.Result{Image: []byte("A")}}
	st := &memStore{}
	h := newTestHandler(gen, st, &fakeInvalidator{})

	out, err := h.TextToImage(context.Background(), TextToImageInput{Out: "t2i.png"})
	require.NoError(t, err)
	assert.Nil(t, out.Seed)
	assert.Nil(t, out.Cost)
	assert.NotContains(t, st.uploads[0].Metadata, "seed")
	assert.NotContains(t, st.uploads[0].Metadata, "cost")
}

func TestNonASCIIPromptEscapedInMetadata(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	st := &memStore{}
	h := newTestHandler(gen, st, &fakeInvalidator{})

	_, err := h.TextToImage(context.Background(), TextToImageInput{
		Params: image.TextToImageParams{Prompt: "café au crabe 🦀", OutputFormat: "png"},
		Out:    "s3://bucket/t2i.png",
	})
	require.NoError(t, err)

	prompt := st.uploads[0].Metadata["prompt"]
	assert.Equal(t, "caf%C3%A9+au+crabe+%F0%9F%A6%80", prompt)
	for _, r := range prompt {
		assert.Less(t, r, rune(128))
	}
	assert.Equal(t, "café au crabe 🦀", gen.calls[0].(image.TextToImageParams).Prompt)
}

func TestOutputFormatWinsOverExtension(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	st := &memStore{}
	h := newTestHandler(gen, st, &fakeInvalidator{})

	_, err := h.TextToImage(context.Background(), TextToImageInput{
		Params: image.TextToImageParams{Prompt: "crab", OutputFormat: "jpeg"},
		Out:    "t2i.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", st.uploads[0].ContentType)
}

func TestRemoteOutputIsInvalidated(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	st := &memStore{}
	inv := &fakeInvalidator{}
	h := newTestHandler(gen, st, inv)

	_, err := h.TextToImage(context.Background(), TextToImageInput{Out: "s3://bucket/images/t2i.png"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"/images/t2i.png"}}, inv.paths)
}

func TestInvalidationError(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	boom := errors.New("boom")
	h := newTestHandler(gen, &memStore{}, &fakeInvalidator{err: boom})

	_, err := h.TextToImage(context.Background(), TextToImageInput{Out: "s3://bucket/t2i.png"})
	assert.ErrorIs(t, err, boom)
}

func TestLoadErrorSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	st := &memStore{files: map[string][]byte{"in.png": []byte("img")}}
	h := newTestHandler(gen, st, &fakeInvalidator{})

	_, err := h.Repaint(context.Background(), RepaintInput{Image: "in.png", MaskImage: "missing.png", Out: "out.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.png")
	assert.Empty(t, gen.calls)
	assert.Empty(t, st.uploads)
}

func TestGeneratorErrorPropagates(t *testing.T) {
	svcErr := &image.ServiceError{StatusCode: 401, Body: []byte(`{"error":"bad key"}`)}
	gen := &fakeGenerator{err: svcErr}
	st := &memStore{}
	h := newTestHandler(gen, st, &fakeInvalidator{})

	_, err := h.TextToImage(context.Background(), TextToImageInput{Out: "t2i.png"})
	assert.ErrorIs(t, err, image.ErrUnauthorized)
	assert.Empty(t, st.uploads)
}

func TestTimeoutSetsDeadline(t *testing.T) {
	gen := &fakeGenerator{result: result()}
	h := newTestHandler(gen, &memStore{}, &fakeInvalidator{})

	_, err := h.TextToImage(context.Background(), TextToImageInput{Out: "a.png"})
	require.NoError(t, err)
	_, ok := gen.ctxs[0].Deadline()
	assert.False(t, ok)

	h.timeout = time.Minute
	_, err = h.TextToImage(context.Background(), TextToImageInput{Out: "b.png"})
	require.NoError(t, err)
	deadline, ok := gen.ctxs[1].Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestContentType(t *testing.T) {
	tests := []struct {
		out, format, want string
	}{
		{"t2i.png", "png", "image/png"},
		{"photo.jpeg", "jpeg", "image/jpeg"},
		{"t2i.png", "jpeg", "image/jpeg"},
		{"photo.png", "", "image/png"},
		{"s3://bucket/key", "jpg", "image/jpeg"},
		{"noext", "webp", "image/webp"},
		{"noext", "", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.out+"/"+tt.format, func(t *testing.T) {
			assert.Equal(t, tt.want, contentType(tt.out, tt.format))
		})
	}
}

func TestNewHandler(t *testing.T) {
	injector := do.New()
	do.ProvideValue[image.Generator](injector, &fakeGenerator{})
	st := &memStore{}
	do.ProvideValue[store.Loader](injector, st)
	do.ProvideValue[store.Uploader](injector, st)
	do.ProvideValue[store.Invalidator](injector, store.NopInvalidator{})
	do.ProvideNamedValue[string](injector, "model", "lcm")
	do.ProvideNamedValue[time.Duration](injector, "timeout", time.Second)

	h, err := NewHandler(injector)
	require.NoError(t, err)
	assert.Equal(t, "lcm", h.model)
	assert.Equal(t, time.Second, h.timeout)
}
