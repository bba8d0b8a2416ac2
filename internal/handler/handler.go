package handler

import (
	"context"
	"mime"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/dmorgan81/getimg/image"
	"github.com/dmorgan81/getimg/internal/log"
	"github.com/dmorgan81/getimg/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type TextToImageInput struct {
	Params image.TextToImageParams
	Out    string
}

type ImageToImageInput struct {
	Params image.ImageToImageParams
	Image  string
	Out    string
}

type ControlNetInput struct {
	Params image.ControlNetParams
	Image  string
	Out    string
}

type RepaintInput struct {
	Params    image.RepaintParams
	Image     string
	MaskImage string
	Out       string
}

type EditInput struct {
	Params image.EditParams
	Image  string
	Out    string
}

type Output struct {
	Out   string
	Seed  *int64
	Cost  *float64
	Bytes int
}

type Handler struct {
	generator   image.Generator
	loader      store.Loader
	uploader    store.Uploader
	invalidator store.Invalidator
	model       string
	timeout     time.Duration
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{
		generator:   do.MustInvoke[image.Generator](i),
		loader:      do.MustInvoke[store.Loader](i),
		uploader:    do.MustInvoke[store.Uploader](i),
		invalidator: do.MustInvoke[store.Invalidator](i),
		model:       do.MustInvokeNamed[string](i, "model"),
		timeout:     do.MustInvokeNamed[time.Duration](i, "timeout"),
	}, nil
}

func (h *Handler) TextToImage(ctx context.Context, input TextToImageInput) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("out", input.Out)
	log.Info("handling text to image")

	res, err := generate(ctx, h.timeout, func(ctx context.Context) (*image.Result, error) {
		return h.generator.TextToImage(ctx, input.Params)
	})
	if err != nil {
		return Output{}, err
	}
	return h.save(ctx, input.Out, input.Params.OutputFormat, metadata("t2i", h.model, input.Params.Prompt, res), res)
}

func (h *Handler) ImageToImage(ctx context.Context, input ImageToImageInput) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("image", input.Image, "out", input.Out)
	log.Info("handling image to image")

	images, err := h.load(ctx, input.Image)
	if err != nil {
		return Output{}, err
	}
	input.Params.Image = images[0]

	res, err := generate(ctx, h.timeout, func(ctx context.Context) (*image.Result, error) {
		return h.generator.ImageToImage(ctx, input.Params)
	})
	if err != nil {
		return Output{}, err
	}
	return h.save(ctx, input.Out, input.Params.OutputFormat, metadata("i2i", h.model, input.Params.Prompt, res), res)
}

func (h *Handler) ControlNet(ctx context.Context, input ControlNetInput) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("image", input.Image, "out", input.Out)
	log.Info("handling controlnet")

	images, err := h.load(ctx, input.Image)
	if err != nil {
		return Output{}, err
	}
	input.Params.Image = images[0]

	res, err := generate(ctx, h.timeout, func(ctx context.Context) (*image.Result, error) {
		return h.generator.ControlNet(ctx, input.Params)
	})
	if err != nil {
		return Output{}, err
	}
	model := lo.Ternary(input.Params.Model != "", input.Params.Model, image.ControlNetModel)
	meta := metadata("cnet", model, input.Params.Prompt, res)
	meta["controlnet"] = input.Params.ControlNet
	return h.save(ctx, input.Out, input.Params.OutputFormat, meta, res)
}

func (h *Handler) Repaint(ctx context.Context, input RepaintInput) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With(
		"image", input.Image,
		"mask", input.MaskImage,
		"out", input.Out,
	)
	log.Info("handling repaint")

	images, err := h.load(ctx, input.Image, input.MaskImage)
	if err != nil {
		return Output{}, err
	}
	input.Params.Image, input.Params.MaskImage = images[0], images[1]

	res, err := generate(ctx, h.timeout, func(ctx context.Context) (*image.Result, error) {
		return h.generator.Repaint(ctx, input.Params)
	})
	if err != nil {
		return Output{}, err
	}
	model := lo.Ternary(input.Params.Model != "", input.Params.Model, image.InpaintModel)
	return h.save(ctx, input.Out, input.Params.OutputFormat, metadata("paint", model, input.Params.Prompt, res), res)
}

func (h *Handler) Edit(ctx context.Context, input EditInput) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("image", input.Image, "out", input.Out)
	log.Info("handling edit")

	images, err := h.load(ctx, input.Image)
	if err != nil {
		return Output{}, err
	}
	input.Params.Image = images[0]

	res, err := generate(ctx, h.timeout, func(ctx context.Context) (*image.Result, error) {
		return h.generator.Edit(ctx, input.Params)
	})
	if err != nil {
		return Output{}, err
	}
	model := lo.Ternary(input.Params.Model != "", input.Params.Model, image.InstructModel)
	return h.save(ctx, input.Out, input.Params.OutputFormat, metadata("edit", model, input.Params.Prompt, res), res)
}

func generate(ctx context.Context, timeout time.Duration, fn func(context.Context) (*image.Result, error)) (*image.Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (h *Handler) load(ctx context.Context, names ...string) ([][]byte, error) {
	images := make([][]byte, len(names))
	group, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		group.Go(func() error {
			data, err := h.loader.Load(ctx, name)
			if err != nil {
				return err
			}
			images[i] = data
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func (h *Handler) save(ctx context.Context, out, format string, meta map[string]string, res *image.Result) (Output, error) {
	err := h.uploader.Upload(ctx, store.UploadParams{
		Name:        out,
		Data:        res.Image,
		ContentType: contentType(out, format),
		Metadata:    meta,
	})
	if err != nil {
		return Output{}, err
	}

	if loc, ok := store.ParseLocation(out); ok {
		if err := h.invalidator.Invalidate(ctx, []string{"/" + loc.Key}); err != nil {
			return Output{}, err
		}
	}

	return Output{Out: out, Seed: res.Seed, Cost: res.Cost, Bytes: len(res.Image)}, nil
}

// S3 user metadata must be US-ASCII, so the prompt is query escaped.
func metadata(operation, model, prompt string, res *image.Result) map[string]string {
	meta := map[string]string{
		"operation": operation,
		"model":     model,
		"prompt":    url.QueryEscape(prompt),
	}
	if res.Seed != nil {
		meta["seed"] = strconv.FormatInt(*res.Seed, 10)
	}
	if res.Cost != nil {
		meta["cost"] = strconv.FormatFloat(*res.Cost, 'f', -1, 64)
	}
	return meta
}

func contentType(out, format string) string {
	if format != "" {
		return "image/" + lo.Ternary(format == "jpg", "jpeg", format)
	}
	if t := mime.TypeByExtension(path.Ext(out)); t != "" {
		return t
	}
	return "application/octet-stream"
}
