package blob

import (
	"context"
	"fmt"

	"specimentrack/internal/infra/blob/fs"
	"specimentrack/internal/infra/blob/memory"
	infraS3 "specimentrack/internal/infra/blob/s3"
)

// S3Options configures the S3 driver.
type S3Options = infraS3.Config

// Options selects and configures a backend. An empty driver means fs.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Options
}

// Open returns the Store selected by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		store, err := fs.New(opts.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := infraS3.New(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMockS3ForTests exposes the in-process S3 mock to other packages' tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
