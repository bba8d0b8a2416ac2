package image

import (
	"github.com/dmorgan81/getimg/internal/codec"
	"github.com/samber/lo"
)

const (
	ControlNetModel = "stable-diffusion-v1-5"
	InpaintModel    = "stable-diffusion-v1-5-inpainting"
	InstructModel   = "instruct-pix2pix"
)

const (
	textToImagePath  = "/latent-consistency/text-to-image"
	imageToImagePath = "/latent-consistency/image-to-image"
	controlNetPath   = "/stable-diffusion/controlnet"
	inpaintPath      = "/stable-diffusion/inpaint"
	instructPath     = "/stable-diffusion/instruct"
)

// TextToImageParams generates an image from a prompt with the client's model.
type TextToImageParams struct {
	Prompt string
	// NegativePrompt is text that should not guide generation. Omitted when nil.
	NegativePrompt *string
	Width          int
	Height         int
	// Steps is the number of denoising steps.
	Steps        int
	OutputFormat string
	// Seed makes generation deterministic. Omitted when nil.
	Seed *int64
}

// ImageToImageParams transforms a reference image with the client's model.
type ImageToImageParams struct {
	Prompt         string
	NegativePrompt *string
	Image          []byte
	// Strength is how much of the reference image is transformed. Omitted when nil.
	Strength     *float64
	Steps        int
	OutputFormat string
	Seed         *int64
}

// ControlNetParams conditions generation on an auxiliary image such as an edge map.
type ControlNetParams struct {
	// ControlNet is the conditioning type, for example "canny-1.1" or "softedge-1.1".
	ControlNet string
	// Model overrides ControlNetModel when set.
	Model          string
	Prompt         string
	NegativePrompt *string
	Image          []byte
	// Strength is the scale at which the conditioning is applied.
	Strength float64
	Width    int
	Height   int
	Steps    int
	// Guidance is the classifier-free guidance scale.
	Guidance     float64
	Seed         int64
	Scheduler    string
	OutputFormat string
}

// RepaintParams repaints the masked area of an image.
type RepaintParams struct {
	// Model overrides InpaintModel when set.
	Model          string
	Prompt         string
	NegativePrompt *string
	Image          []byte
	MaskImage      []byte
	Strength       *float64
	Width          int
	Height         int
	Steps          int
	Guidance       float64
	Seed           int64
	Scheduler      string
	OutputFormat   string
}

// EditParams edits an image following an instruction prompt.
type EditParams struct {
	// Model overrides InstructModel when set.
	Model          string
	Prompt         string
	NegativePrompt *string
	Image          []byte
	// ImageGuidance ties the result closer to the source image as it grows.
	ImageGuidance float64
	Steps         int
	Guidance      float64
	Seed          int64
	Scheduler     string
	OutputFormat  string
}

type textToImageRequest struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	NegativePrompt *string `json:"negative_prompt,omitempty"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	OutputFormat   string  `json:"output_format"`
	Seed           *int64  `json:"seed,omitempty"`
}

type imageToImageRequest struct {
	Model          string   `json:"model"`
	Prompt         string   `json:"prompt"`
	NegativePrompt *string  `json:"negative_prompt,omitempty"`
	Image          string   `json:"image"`
	Strength       *float64 `json:"strength,omitempty"`
	Steps          int      `json:"steps"`
	OutputFormat   string   `json:"output_format"`
	Seed           *int64   `json:"seed,omitempty"`
}

type controlNetRequest struct {
	ControlNet     string  `json:"controlnet"`
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	NegativePrompt *string `json:"negative_prompt,omitempty"`
	Image          string  `json:"image"`
	Strength       float64 `json:"strength"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	Seed           int64   `json:"seed"`
	Scheduler      string  `json:"scheduler"`
	OutputFormat   string  `json:"output_format"`
}

type repaintRequest struct {
	Model          string   `json:"model"`
	Prompt         string   `json:"prompt"`
	NegativePrompt *string  `json:"negative_prompt,omitempty"`
	Image          string   `json:"image"`
	MaskImage      string   `json:"mask_image"`
	Strength       *float64 `json:"strength,omitempty"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	Steps          int      `json:"steps"`
	Guidance       float64  `json:"guidance"`
	Seed           int64    `json:"seed"`
	Scheduler      string   `json:"scheduler"`
	OutputFormat   string   `json:"output_format"`
}

type editRequest struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	NegativePrompt *string `json:"negative_prompt,omitempty"`
	Image          string  `json:"image"`
	ImageGuidance  float64 `json:"image_guidance"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	Seed           int64   `json:"seed"`
	Scheduler      string  `json:"scheduler"`
	OutputFormat   string  `json:"output_format"`
}

type response struct {
	Image *string  `json:"image"`
	Seed  *int64   `json:"seed"`
	Cost  *float64 `json:"cost"`
}

func newTextToImageRequest(model string, p TextToImageParams) textToImageRequest {
	return textToImageRequest{
		Model:          model,
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Width:          p.Width,
		Height:         p.Height,
		Steps:          p.Steps,
		OutputFormat:   p.OutputFormat,
		Seed:           p.Seed,
	}
}

func newImageToImageRequest(model string, p ImageToImageParams) imageToImageRequest {
	return imageToImageRequest{
		Model:          model,
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Image:          codec.Encode(p.Image),
		Strength:       p.Strength,
		Steps:          p.Steps,
		OutputFormat:   p.OutputFormat,
		Seed:           p.Seed,
	}
}

func newControlNetRequest(p ControlNetParams) controlNetRequest {
	return controlNetRequest{
		ControlNet:     p.ControlNet,
		Model:          lo.Ternary(p.Model != "", p.Model, ControlNetModel),
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Image:          codec.Encode(p.Image),
		Strength:       p.Strength,
		Width:          p.Width,
		Height:         p.Height,
		Steps:          p.Steps,
		Guidance:       p.Guidance,
		Seed:           p.Seed,
		Scheduler:      p.Scheduler,
		OutputFormat:   p.OutputFormat,
	}
}

func newRepaintRequest(p RepaintParams) repaintRequest {
	return repaintRequest{
		Model:          lo.Ternary(p.Model != "", p.Model, InpaintModel),
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Image:          codec.Encode(p.Image),
		MaskImage:      codec.Encode(p.MaskImage),
		Strength:       p.Strength,
		Width:          p.Width,
		Height:         p.Height,
		Steps:          p.Steps,
		Guidance:       p.Guidance,
		Seed:           p.Seed,
		Scheduler:      p.Scheduler,
		OutputFormat:   p.OutputFormat,
	}
}

func newEditRequest(p EditParams) editRequest {
	return editRequest{
		Model:          lo.Ternary(p.Model != "", p.Model, InstructModel),
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Image:          codec.Encode(p.Image),
		ImageGuidance:  p.ImageGuidance,
		Steps:          p.Steps,
		Guidance:       p.Guidance,
		Seed:           p.Seed,
		Scheduler:      p.Scheduler,
		OutputFormat:   p.OutputFormat,
	}
}
