package api

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/cultivar-map/internal/grid"
	"github.com/joeblew999/cultivar-map/internal/i18n"
	"github.com/joeblew999/cultivar-map/internal/legend"
	"github.com/joeblew999/cultivar-map/internal/service"
)

// Data file names inside the data directory.
const (
	SiteFile    = "site.yaml"
	LegendsFile = "legends.json"
	GridFile    = "grid.geojson"
)

// Load reads the site configuration, the legend catalog and the grid from
// dataDir concurrently and wires the read-only services over them.
func Load(ctx context.Context, dataDir string) (*Services, error) {
	var (
		site    *service.SiteConfig
		catalog *legend.Catalog
		cells   *grid.Dataset
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		site, err = service.LoadSite(filepath.Join(dataDir, SiteFile))
		return err
	})
	g.Go(func() (err error) {
		catalog, err = legend.LoadCatalogFile(filepath.Join(dataDir, LegendsFile))
		return err
	})
	g.Go(func() (err error) {
		cells, err = grid.LoadFile(filepath.Join(dataDir, GridFile))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	layers, err := service.NewLayerService(site)
	if err != nil {
		return nil, fmt.Errorf("site config: %w", err)
	}
	return &Services{
		Layers:   layers,
		Catalog:  catalog,
		Grid:     cells,
		Resolver: legend.NewResolver(catalog, layers),
		Langs:    i18n.NewMatcher(languages(site)),
		DataDir:  dataDir,
	}, nil
}

// languages lists the site languages with the default first.
func languages(site *service.SiteConfig) []string {
	codes := []string{site.DefaultLanguage}
	for _, c := range site.Languages {
		if c != site.DefaultLanguage {
			codes = append(codes, c)
		}
	}
	return codes
}
