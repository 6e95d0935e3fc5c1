package main

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillmatrix/pkg/catalog"
	"github.com/jingkaihe/skillmatrix/pkg/sources"
)

func getProjectDir() (string, error) {
	dir, err := filepath.Abs(viper.GetString("project"))
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve project directory")
	}
	return dir, nil
}

func newFetcher() (*sources.Fetcher, error) {
	var opts []sources.FetcherOption
	if dir := viper.GetString("cache_dir"); dir != "" {
		opts = append(opts, sources.WithCacheDir(dir))
	}
	return sources.NewFetcher(opts...)
}

// newRegistry resolves the "source" key through the global viper, so the
// environment, flags and the user config file all apply
func newRegistry() *sources.Registry {
	return sources.NewRegistry(sources.WithViper(viper.GetViper()))
}

func newBuilder(projectDir string) (*catalog.Builder, error) {
	fetcher, err := newFetcher()
	if err != nil {
		return nil, err
	}
	return catalog.NewBuilder(projectDir,
		catalog.WithRegistry(newRegistry()),
		catalog.WithFetcher(fetcher),
	)
}
