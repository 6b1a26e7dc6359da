// cmd/fusasm/images_other.go

//go:build !unix

package main

import (
	"errors"

	"github.com/tamzrod/fusa-sm/internal/config"
	"github.com/tamzrod/fusa-sm/internal/memimage"
)

func mapImages(images []config.ImageConfig) (*memimage.Space, func() error, error) {
	if len(images) > 0 {
		return nil, nil, errors.New("memory images need a unix platform")
	}
	return &memimage.Space{}, func() error { return nil }, nil
}
