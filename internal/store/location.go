package store

import (
	"context"
	"strings"
)

const s3Scheme = "s3://"

// Location is an object in S3 addressed as s3://bucket/key.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return s3Scheme + l.Bucket + "/" + l.Key
}

func ParseLocation(name string) (Location, bool) {
	rest, ok := strings.CutPrefix(name, s3Scheme)
	if !ok {
		return Location{}, false
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Location{}, false
	}
	return Location{Bucket: bucket, Key: key}, true
}

func IsRemote(name string) bool {
	return strings.HasPrefix(name, s3Scheme)
}

// Mux sends s3:// names to Remote and everything else to Local.
// Remote is resolved on first use so AWS is only configured when an s3:// name appears.
type Mux struct {
	Local  Store
	Remote func() (Store, error)
}

func (m *Mux) Load(ctx context.Context, name string) ([]byte, error) {
	if !IsRemote(name) {
		return m.Local.Load(ctx, name)
	}
	remote, err := m.Remote()
	if err != nil {
		return nil, err
	}
	return remote.Load(ctx, name)
}

func (m *Mux) Upload(ctx context.Context, params UploadParams) error {
	if !IsRemote(params.Name) {
		return m.Local.Upload(ctx, params)
	}
	remote, err := m.Remote()
	if err != nil {
		return err
	}
	return remote.Upload(ctx, params)
}
