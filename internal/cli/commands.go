package cli

import (
	"context"

	"github.com/dmorgan81/getimg/image"
	"github.com/dmorgan81/getimg/internal/handler"
	"github.com/spf13/pflag"
)

var editCommand = command{
	name:     "edit",
	summary:  "Generate an edited image following an instruction prompt",
	example:  `getimg edit -p "A man riding a horse on Mars." -i image.jpg -s 25 -g 7.5 -e 25 -y 1.5 -o png -c ddim`,
	progress: "Generating edited image...",
	required: []string{"prompt", "image", "seed"},
	flags: func(fs *pflag.FlagSet) runFunc {
		var (
			p        image.EditParams
			negative string
			in, out  string
		)
		fs.StringVarP(&p.Prompt, "prompt", "p", "", "instruction describing the edit")
		negativePromptFlag(fs, &negative)
		imageFlag(fs, &in)
		fs.Float64VarP(&p.ImageGuidance, "image-guidance", "y", 1.5, "how closely to follow the source image")
		fs.IntVarP(&p.Steps, "steps", "s", 25, "number of denoising steps")
		guidanceFlag(fs, &p.Guidance)
		fs.Int64VarP(&p.Seed, "seed", "e", 0, "seed for deterministic generation")
		schedulerFlag(fs, &p.Scheduler, "ddim")
		outputFlags(fs, &p.OutputFormat, &out, "edited_image.png")

		return func(ctx context.Context, h *handler.Handler) (handler.Output, error) {
			p.NegativePrompt = optional(fs, "negative-prompt", negative)
			return h.Edit(ctx, handler.EditInput{Params: p, Image: in, Out: out})
		}
	},
}

var paintCommand = command{
	name:     "paint",
	summary:  "Repaint the masked area of an image",
	example:  `getimg paint -p "A cityscape with neon lights." -i image.png -m mask.png -w 512 -a 512 -e 50 -s 5 -g 10.0 -o jpeg -c euler -f 1`,
	progress: "Repainting image...",
	required: []string{"prompt", "image", "mask-image", "seed"},
	flags: func(fs *pflag.FlagSet) runFunc {
		var (
			p             image.RepaintParams
			negative      string
			strength      float64
			in, mask, out string
		)
		fs.StringVarP(&p.Prompt, "prompt", "p", "", "text describing the repainted area")
		negativePromptFlag(fs, &negative)
		imageFlag(fs, &in)
		fs.StringVarP(&mask, "mask-image", "m", "", "mask image, local path or s3://bucket/key")
		fs.Float64VarP(&strength, "strength", "f", 0, "how much of the masked area to transform")
		sizeFlags(fs, &p.Width, &p.Height)
		fs.IntVarP(&p.Steps, "steps", "s", 25, "number of denoising steps")
		guidanceFlag(fs, &p.Guidance)
		fs.Int64VarP(&p.Seed, "seed", "e", 0, "seed for deterministic generation")
		schedulerFlag(fs, &p.Scheduler, "euler")
		outputFlags(fs, &p.OutputFormat, &out, "edited_image.png")

		return func(ctx context.Context, h *handler.Handler) (handler.Output, error) {
			p.NegativePrompt = optional(fs, "negative-prompt", negative)
			p.Strength = optional(fs, "strength", strength)
			return h.Repaint(ctx, handler.RepaintInput{Params: p, Image: in, MaskImage: mask, Out: out})
		}
	},
}

var textToImageCommand = command{
	name:     "t2i",
	summary:  "Generate an image from text",
	example:  `getimg t2i -p "A colorful sunset over the ocean." -w 512 -a 512 -s 5 -e 42 -o png`,
	progress: "Generating image from text...",
	required: []string{"prompt"},
	flags: func(fs *pflag.FlagSet) runFunc {
		var (
			p        image.TextToImageParams
			negative string
			seed     int64
			out      string
		)
		fs.StringVarP(&p.Prompt, "prompt", "p", "", "text describing the image")
		negativePromptFlag(fs, &negative)
		sizeFlags(fs, &p.Width, &p.Height)
		fs.IntVarP(&p.Steps, "steps", "s", 4, "number of denoising steps")
		fs.Int64VarP(&seed, "seed", "e", 0, "seed for deterministic generation")
		outputFlags(fs, &p.OutputFormat, &out, "t2i.png")

		return func(ctx context.Context, h *handler.Handler) (handler.Output, error) {
			p.NegativePrompt = optional(fs, "negative-prompt", negative)
			p.Seed = optional(fs, "seed", seed)
			return h.TextToImage(ctx, handler.TextToImageInput{Params: p, Out: out})
		}
	},
}

var imageToImageCommand = command{
	name:     "i2i",
	summary:  "Generate an image from another image",
	example:  `getimg i2i -p "Add a forest in the background." -i image.png -s 6 -e 512 -o jpeg -f 0.5`,
	progress: "Generating image from image...",
	required: []string{"prompt", "image"},
	flags: func(fs *pflag.FlagSet) runFunc {
		var (
			p        image.ImageToImageParams
			negative string
			strength float64
			seed     int64
			in, out  string
		)
		fs.StringVarP(&p.Prompt, "prompt", "p", "", "text describing the transformation")
		negativePromptFlag(fs, &negative)
		imageFlag(fs, &in)
		fs.Float64VarP(&strength, "strength", "f", 0, "how much of the source image to transform")
		fs.IntVarP(&p.Steps, "steps", "s", 4, "number of denoising steps")
		fs.Int64VarP(&seed, "seed", "e", 0, "seed for deterministic generation")
		outputFlags(fs, &p.OutputFormat, &out, "i2i.png")

		return func(ctx context.Context, h *handler.Handler) (handler.Output, error) {
			p.NegativePrompt = optional(fs, "negative-prompt", negative)
			p.Strength = optional(fs, "strength", strength)
			p.Seed = optional(fs, "seed", seed)
			return h.ImageToImage(ctx, handler.ImageToImageInput{Params: p, Image: in, Out: out})
		}
	},
}

var controlNetCommand = command{
	name:     "cnet",
	summary:  "Generate an image using ControlNet conditioning",
	example:  `getimg cnet -p "A painting of a landscape." -i edges.png -f 1.0 -w 512 -a 512 -s 25 -g 7.5 -e 512 -c lms -o png -r canny-1.1`,
	progress: "Generating image using ControlNet...",
	required: []string{"prompt", "image", "seed", "net"},
	flags: func(fs *pflag.FlagSet) runFunc {
		var (
			p        image.ControlNetParams
			negative string
			in, out  string
		)
		fs.StringVarP(&p.Prompt, "prompt", "p", "", "text describing the image")
		negativePromptFlag(fs, &negative)
		imageFlag(fs, &in)
		fs.StringVarP(&p.ControlNet, "net", "r", "", "conditioning type, e.g. canny-1.1 or softedge-1.1")
		fs.Float64VarP(&p.Strength, "strength", "f", 1.0, "scale at which the conditioning is applied")
		sizeFlags(fs, &p.Width, &p.Height)
		fs.IntVarP(&p.Steps, "steps", "s", 25, "number of denoising steps")
		guidanceFlag(fs, &p.Guidance)
		fs.Int64VarP(&p.Seed, "seed", "e", 0, "seed for deterministic generation")
		schedulerFlag(fs, &p.Scheduler, "euler")
		outputFlags(fs, &p.OutputFormat, &out, "cnet.png")

		return func(ctx context.Context, h *handler.Handler) (handler.Output, error) {
			p.NegativePrompt = optional(fs, "negative-prompt", negative)
			return h.ControlNet(ctx, handler.ControlNetInput{Params: p, Image: in, Out: out})
		}
	},
}

func negativePromptFlag(fs *pflag.FlagSet, v *string) {
	fs.StringVarP(v, "negative-prompt", "n", "", "text that should not guide generation")
}

func imageFlag(fs *pflag.FlagSet, v *string) {
	fs.StringVarP(v, "image", "i", "", "input image, local path or s3://bucket/key")
}

func sizeFlags(fs *pflag.FlagSet, width, height *int) {
	fs.IntVarP(width, "width", "w", 512, "output width in pixels")
	fs.IntVarP(height, "height", "a", 512, "output height in pixels")
}

func guidanceFlag(fs *pflag.FlagSet, v *float64) {
	fs.Float64VarP(v, "guidance", "g", 7.5, "how closely to follow the prompt")
}

func schedulerFlag(fs *pflag.FlagSet, v *string, def string) {
	fs.StringVarP(v, "scheduler", "c", def, "sampling scheduler")
}

func outputFlags(fs *pflag.FlagSet, format, out *string, def string) {
	fs.StringVarP(format, "output-format", "o", "png", "output format, png or jpeg")
	fs.StringVar(out, "out", def, "where to save the image, local path or s3://bucket/key")
}
