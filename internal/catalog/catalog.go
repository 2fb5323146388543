// Package catalog loads market instruments and enhancement ladders.
//
// Built-in tables are embedded. A directory given to Load may carry
// instruments.yaml and ladders.yaml; entries there replace built-in entries
// with the same symbol or item and add new ones.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"guild-economy/internal/economy"
	"guild-economy/internal/outcome"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var defaults embed.FS

const (
	instrumentsFile = "instruments.yaml"
	laddersFile     = "ladders.yaml"
)

type instrumentsDoc struct {
	Instruments []outcome.Instrument `yaml:"instruments"`
}

type laddersDoc struct {
	Ladders []outcome.Ladder `yaml:"ladders"`
}

type Catalog struct {
	dir string

	mu          sync.RWMutex
	instruments map[string]outcome.Instrument
	ladders     map[string]outcome.Ladder
}

// Load builds a catalog from the embedded tables overlaid with dir. An empty
// dir uses the embedded tables only.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{dir: dir}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rereads the override directory. On error the previous tables stay
// in place.
func (c *Catalog) Reload() error {
	instruments := map[string]outcome.Instrument{}
	ladders := map[string]outcome.Ladder{}

	for _, src := range c.sources() {
		var idoc instrumentsDoc
		if err := src.read(instrumentsFile, &idoc); err != nil {
			return err
		}
		for _, in := range idoc.Instruments {
			in.Symbol = normalizeSymbol(in.Symbol)
			if err := in.Validate(); err != nil {
				return fmt.Errorf("%s/%s: %w", src.name, instrumentsFile, err)
			}
			instruments[in.Symbol] = in
		}

		var ldoc laddersDoc
		if err := src.read(laddersFile, &ldoc); err != nil {
			return err
		}
		for _, l := range ldoc.Ladders {
			if err := l.Validate(); err != nil {
				return fmt.Errorf("%s/%s: %w", src.name, laddersFile, err)
			}
			ladders[l.Item] = l
		}
	}

	c.mu.Lock()
	c.instruments = instruments
	c.ladders = ladders
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Instrument(symbol string) (outcome.Instrument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	in, ok := c.instruments[normalizeSymbol(symbol)]
	if !ok {
		return outcome.Instrument{}, fmt.Errorf("%w: %q", economy.ErrUnknownInstrument, symbol)
	}
	return in, nil
}

// Instruments returns every instrument ordered by kind, then symbol.
func (c *Catalog) Instruments() []outcome.Instrument {
	c.mu.RLock()
	out := make([]outcome.Instrument, 0, len(c.instruments))
	for _, in := range c.instruments {
		out = append(out, in)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind > out[j].Kind
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func (c *Catalog) Ladder(item string) (outcome.Ladder, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.ladders[item]
	if !ok {
		return outcome.Ladder{}, fmt.Errorf("%w: unknown item %q", economy.ErrInvalidParameters, item)
	}
	return l, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

type source struct {
	name string
	read func(file string, out any) error
}

func (c *Catalog) sources() []source {
	srcs := []source{{
		name: "embedded",
		read: func(file string, out any) error {
			b, err := defaults.ReadFile("defaults/" + file)
			if err != nil {
				return fmt.Errorf("read embedded %s: %w", file, err)
			}
			return decode(b, file, out)
		},
	}}
	if c.dir == "" {
		return srcs
	}
	return append(srcs, source{
		name: c.dir,
		read: func(file string, out any) error {
			b, err := os.ReadFile(filepath.Join(c.dir, file))
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			return decode(b, file, out)
		},
	})
}

func decode(b []byte, file string, out any) error {
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	return nil
}
