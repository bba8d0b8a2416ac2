package inject

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/getimg/image"
	"github.com/dmorgan81/getimg/internal/config"
	"github.com/dmorgan81/getimg/internal/handler"
	"github.com/dmorgan81/getimg/internal/log"
	"github.com/dmorgan81/getimg/internal/param"
	"github.com/dmorgan81/getimg/internal/store"
	"github.com/samber/do"
)

func Setup(ctx context.Context, cfg config.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, http.DefaultClient)

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)

	do.ProvideNamed[string](injector, "api_key", func(i *do.Injector) (string, error) {
		if cfg.APIKey != "" || cfg.APIKeyParam == "" {
			return cfg.APIKey, nil
		}
		return do.MustInvoke[param.Fetcher](i).Fetch(ctx, cfg.APIKeyParam)
	})
	do.ProvideNamedValue[string](injector, "model", cfg.Model)
	do.ProvideNamedValue[time.Duration](injector, "timeout", cfg.Timeout)

	do.Provide[image.Generator](injector, func(i *do.Injector) (image.Generator, error) {
		key, err := do.InvokeNamed[string](i, "api_key")
		if err != nil {
			return nil, err
		}
		creds := image.Credentials{APIKey: key, Model: do.MustInvokeNamed[string](i, "model")}
		return image.NewClient(creds,
			image.WithBaseURL(cfg.BaseURL),
			image.WithHTTPClient(do.MustInvoke[*http.Client](i)),
		), nil
	})

	do.Provide[*store.S3Store](injector, func(i *do.Injector) (*store.S3Store, error) {
		return &store.S3Store{Client: do.MustInvoke[*s3.Client](i)}, nil
	})
	do.Provide[*store.Mux](injector, func(i *do.Injector) (*store.Mux, error) {
		return &store.Mux{
			Local: &store.FileStore{},
			Remote: func() (store.Store, error) {
				s3Store, err := do.Invoke[*store.S3Store](i)
				if err != nil {
					return nil, err
				}
				return s3Store, nil
			},
		}, nil
	})
	do.Provide[store.Loader](injector, func(i *do.Injector) (store.Loader, error) {
		return do.MustInvoke[*store.Mux](i), nil
	})
	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		return do.MustInvoke[*store.Mux](i), nil
	})
	do.Provide[store.Invalidator](injector, func(i *do.Injector) (store.Invalidator, error) {
		if cfg.Distribution == "" {
			return store.NopInvalidator{}, nil
		}
		return &store.CloudFrontInvalidator{
			Client:       do.MustInvoke[*cloudfront.Client](i),
			Distribution: cfg.Distribution,
		}, nil
	})

	do.Provide[*handler.Handler](injector, handler.NewHandler)

	return injector
}
