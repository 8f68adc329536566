package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nexconsult/simples-nacional/internal/services"
	"github.com/nexconsult/simples-nacional/internal/utils"
	"github.com/urfave/cli"
)

func runResolve(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)
	ctx := context.Background()

	cnpjs, err := readInput(m, c.GlobalString("input"))
	if err != nil {
		return err
	}

	container, err := services.NewContainer(ctx, m.config, m.logger)
	if err != nil {
		return err
	}
	defer container.Close()

	results, err := container.SimplesService.Resolve(ctx, cnpjs)
	if results == nil && err != nil {
		return err
	}

	if werr := writeOutput(m, c.GlobalString("output"), results); werr != nil {
		return werr
	}

	// results were emitted, but the next run will not see this run's lookups
	if errors.Is(err, services.ErrCacheSave) {
		return err
	}
	return nil
}

func runValidate(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)

	cnpjs, err := readInput(m, c.GlobalString("input"))
	if err != nil {
		return err
	}

	infos := make([]utils.CNPJInfo, 0, len(cnpjs))
	for _, raw := range cnpjs {
		infos = append(infos, utils.AnalyzeCNPJ(raw))
	}

	return writeOutput(m, c.GlobalString("output"), infos)
}

func runCacheStats(c *cli.Context) error {
	m := c.App.Metadata["config"].(*metadata)
	ctx := context.Background()

	container, err := services.NewContainer(ctx, m.config, m.logger)
	if err != nil {
		return err
	}
	defer container.Close()

	stats, err := container.SimplesService.CacheStats(ctx)
	if err != nil {
		return err
	}

	return writeOutput(m, c.GlobalString("output"), struct {
		Backend string `json:"backend"`
		Entries int    `json:"entries"`
		Fresh   int    `json:"fresh"`
		Stale   int    `json:"stale"`
		TTLDays int    `json:"ttl_days"`
	}{
		Backend: stats.Backend,
		Entries: stats.Entries,
		Fresh:   stats.Fresh,
		Stale:   stats.Stale,
		TTLDays: m.config.Simples.CacheTTLDays,
	})
}

// readInput decodes a JSON array of strings from fileName, or stdin when empty
func readInput(m *metadata, fileName string) ([]string, error) {
	r := m.r
	if fileName != "" {
		f, err := os.Open(fileName)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var cnpjs []string
	if err := json.NewDecoder(r).Decode(&cnpjs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty input, expected a JSON array of strings")
		}
		return nil, fmt.Errorf("invalid input, expected a JSON array of strings: %w", err)
	}
	if cnpjs == nil {
		return nil, fmt.Errorf("invalid input, expected a JSON array of strings")
	}
	return cnpjs, nil
}

// writeOutput prints v as indented JSON to fileName, or stdout when empty
func writeOutput(m *metadata, fileName string, v interface{}) error {
	w := m.w
	if fileName != "" {
		f, err := os.Create(fileName)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
