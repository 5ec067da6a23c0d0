package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/seisview/markermap/internal/cache"
	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/geojson"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
	"github.com/seisview/markermap/internal/seed"
	"github.com/seisview/markermap/internal/storage"
)

// exportGeoJSON loads the markers stored by the configured backend into
// fresh registries and writes them as a GeoJSON FeatureCollection.
func exportGeoJSON(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	kindFlag := fs.String("kind", "", "station or event; both when empty")
	out := fs.String("out", "markers.geojson", "output file, - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	storageCfg := config.GetStorageConfig()
	if storageCfg.Type == "memory" {
		return errors.New("the memory backend keeps nothing between runs; export needs sqlite or postgres")
	}
	backend, err := createStorageBackend(storageCfg, sess, cache.NewMarkerCache(), Logger)
	if err != nil {
		return err
	}
	if backend == nil {
		return errors.New("storage is disabled")
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("init %s storage: %w", storageCfg.Type, err)
	}
	defer backend.Close()

	stations, events := newRegistries()
	var selected []*registry.Registry
	switch *kindFlag {
	case "":
		selected = []*registry.Registry{stations, events}
	default:
		kind, err := marker.ParseKind(*kindFlag)
		if err != nil {
			return err
		}
		if kind == marker.KindStation {
			selected = []*registry.Registry{stations}
		} else {
			selected = []*registry.Registry{events}
		}
	}

	total := 0
	for _, reg := range selected {
		n, err := storage.Restore(backend, reg, Logger)
		if err != nil {
			return err
		}
		total += n
	}

	data, err := geojson.Marshal(selected...)
	if err != nil {
		return err
	}
	if *out == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	Logger.Info("Exported markers", "path", *out, "count", total)
	return nil
}

// checkSeed decodes and validates seed files without registering anything.
func checkSeed(args []string) error {
	if len(args) == 0 {
		return errors.New("no seed file provided")
	}
	var errs []error
	for _, path := range args {
		f, err := seed.DecodeFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		st, ev, err := f.Markers()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		fmt.Printf("%s: %d stations, %d events\n", path, len(st), len(ev))
	}
	return errors.Join(errs...)
}
