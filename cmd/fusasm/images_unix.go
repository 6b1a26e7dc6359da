// cmd/fusasm/images_unix.go

//go:build unix

package main

import (
	"errors"
	"io"

	"github.com/tamzrod/fusa-sm/internal/config"
	"github.com/tamzrod/fusa-sm/internal/memimage"
)

// mapImages maps every configured image into one address space.
func mapImages(images []config.ImageConfig) (*memimage.Space, func() error, error) {
	var (
		space   memimage.Space
		closers []io.Closer
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}

	for _, img := range images {
		m, err := memimage.Map(img.Path, img.Base, img.Offset, img.Size)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, m)
		if err := space.Add(m); err != nil {
			_ = closeAll()
			return nil, nil, err
		}
	}
	return &space, closeAll, nil
}
