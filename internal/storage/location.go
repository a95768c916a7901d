package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Location is a parsed storage URI.
//
//	s3://bucket/prefix/key        -> Scheme "s3", Root "bucket", Path "prefix/key"
//	azure://container/prefix/key  -> Scheme "azure", Root "container", Path "prefix/key"
//	/data/out/lcs.parquet         -> Scheme "local", Root "/data/out", Path "lcs.parquet"
type Location struct {
	Scheme string
	Root   string
	Path   string
}

// String returns the location as a URI
func (l Location) String() string {
	switch l.Scheme {
	case "s3", "azure":
		return l.Scheme + "://" + l.Root + "/" + l.Path
	default:
		return filepath.Join(l.Root, l.Path)
	}
}

// ParseLocation parses a file or object URI. With dir set the whole local
// path becomes the root (an input directory); otherwise the root is the
// parent directory and Path is the file name.
func ParseLocation(uri string, dir bool) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty storage location")
	}

	for _, scheme := range []string{"s3", "azure"} {
		rest, ok := strings.CutPrefix(uri, scheme+"://")
		if !ok {
			continue
		}
		root, path, _ := strings.Cut(rest, "/")
		if root == "" {
			return Location{}, fmt.Errorf("missing bucket or container in %q", uri)
		}
		if !dir && path == "" {
			return Location{}, fmt.Errorf("missing object key in %q", uri)
		}
		return Location{Scheme: scheme, Root: root, Path: path}, nil
	}

	if dir {
		return Location{Scheme: "local", Root: uri}, nil
	}
	return Location{Scheme: "local", Root: filepath.Dir(uri), Path: filepath.Base(uri)}, nil
}

// Options carries credentials and endpoints for remote backends. Bucket and
// container names come from the Location.
type Options struct {
	S3    S3Config
	Azure AzureBlobConfig
}

// Open creates the backend serving loc. Local roots are created when create
// is set (output locations) and must exist otherwise (input locations).
func Open(ctx context.Context, loc Location, opts Options, create bool, logger zerolog.Logger) (Backend, error) {
	switch loc.Scheme {
	case "s3":
		cfg := opts.S3
		cfg.Bucket = loc.Root
		return NewS3Backend(ctx, &cfg, logger)
	case "azure":
		cfg := opts.Azure
		cfg.ContainerName = loc.Root
		return NewAzureBlobBackend(ctx, &cfg, logger)
	case "local":
		return NewLocalBackend(loc.Root, create, logger)
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", loc.Scheme)
	}
}
