// Package cli implements the getimg command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmorgan81/getimg/internal/config"
	"github.com/dmorgan81/getimg/internal/handler"
	"github.com/dmorgan81/getimg/internal/inject"
	"github.com/dmorgan81/getimg/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

type runFunc func(context.Context, *handler.Handler) (handler.Output, error)

type command struct {
	name     string
	summary  string
	example  string
	progress string
	required []string
	flags    func(*pflag.FlagSet) runFunc
}

var commands = []command{
	editCommand,
	paintCommand,
	textToImageCommand,
	imageToImageCommand,
	controlNetCommand,
}

// Run executes the command line in args (without the program name) and
// reports progress on stdout. Diagnostics and logs go to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	var (
		flags      config.Config
		configPath string
		verbose    bool
	)
	fs := pflag.NewFlagSet("getimg", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(stderr)
	fs.StringVarP(&flags.APIKey, "api-key", "a", "", "API key for authentication (env "+config.EnvAPIKey+")")
	fs.StringVar(&flags.APIKeyParam, "api-key-param", "", "SSM parameter holding the API key (env "+config.EnvAPIKeyParam+")")
	fs.StringVarP(&flags.Model, "model", "m", "", "model for t2i and i2i (env "+config.EnvModel+")")
	fs.StringVar(&configPath, "config", "", "YAML configuration file (env "+config.EnvConfig+")")
	fs.StringVar(&flags.BaseURL, "base-url", "", "API base URL (env "+config.EnvBaseURL+")")
	fs.DurationVar(&flags.Timeout, "timeout", 0, "deadline for the API call, e.g. 90s (env "+config.EnvTimeout+")")
	fs.StringVar(&flags.Distribution, "distribution", "", "CloudFront distribution to invalidate after writing to S3 (env "+config.EnvDistribution+")")
	fs.BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	name := fs.Arg(0)
	cmd, ok := lo.Find(commands, func(c command) bool { return c.name == name })
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	cmdFlags := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	cmdFlags.SetOutput(stderr)
	cmdFlags.SortFlags = false
	run := cmd.flags(cmdFlags)
	cmdFlags.Usage = func() { cmd.usage(cmdFlags) }
	if err := cmdFlags.Parse(fs.Args()[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if cmdFlags.NArg() > 0 {
		return fmt.Errorf("unexpected argument(s) %q for %s", cmdFlags.Args(), cmd.name)
	}
	if missing := lo.Filter(cmd.required, func(f string, _ int) bool { return !cmdFlags.Changed(f) }); len(missing) > 0 {
		return fmt.Errorf("required flag(s) %q not set", strings.Join(missing, `", "`))
	}

	cfg, err := config.Load(configPath, getenv)
	if err != nil {
		return err
	}
	cfg = cfg.Override(flags)

	ctx = log.NewContext(ctx, log.New(stderr, log.Level(verbose)))
	log := log.FromContextOrDiscard(ctx).WithGroup("cli")
	log.Debug("running command", "command", cmd.name, "model", cfg.Model, "base_url", cfg.BaseURL)

	injector := inject.Setup(ctx, cfg)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			log.Warn("shutdown failed", "error", err)
		}
	}()

	h, err := do.Invoke[*handler.Handler](injector)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, cmd.progress)
	out, err := run(ctx, h)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Image saved as: %s\n", out.Out)
	if out.Seed != nil {
		fmt.Fprintf(stdout, "Seed: %d\n", *out.Seed)
	}
	if out.Cost != nil {
		fmt.Fprintf(stdout, "Cost: %g\n", *out.Cost)
	}
	return nil
}

func usage(fs *pflag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "Usage: getimg [OPTIONS] <COMMAND> [FLAGS]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-6s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'getimg <COMMAND> --help' for command flags.")
}

func (c command) usage(fs *pflag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "Usage: getimg [OPTIONS] %s [FLAGS]\n\n%s\n\n", c.name, c.summary)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintf(w, "\nRequired: --%s\n", strings.Join(c.required, ", --"))
	fmt.Fprintf(w, "\nExample:\n  %s\n", c.example)
}

func optional[T any](fs *pflag.FlagSet, name string, v T) *T {
	return lo.Ternary(fs.Changed(name), lo.ToPtr(v), nil)
}
