// Command inventory-ingest reconciles supplier product feeds into the
// inventory seed file consumed by the API server at startup.
//
// Feeds are gzip-compressed NDJSON files, one product record per line.
// Supplier feeds are noisy, so a product is only accepted when its name
// appears in at least two feeds. The cross-check runs in two passes: pass 1
// builds a bloom filter of names per feed, pass 2 re-streams each feed and
// keeps records whose name tests positive in another feed's filter.
// Confirmed records are merged (quantities summed, first-seen price and
// description kept) and written as a JSON array.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shop-basket-challenge/internal/seed"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

// feedRecord is one parsed NDJSON line from a supplier feed.
type feedRecord struct {
	name        string
	price       decimal.Decimal
	description string
	quantity    int
}

// fileResult holds the candidates found in a single feed during pass 2:
// which other feeds confirmed each name, and the first full record seen.
type fileResult struct {
	masks   map[string]uint
	records map[string]feedRecord
}

func main() {
	var out string
	flag.StringVar(&out, "out", "data/inventory.json", "output inventory seed file")
	flag.Parse()

	files := flag.Args()
	if len(files) < 2 {
		slog.Error("at least two feed files are required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, out); err != nil {
		slog.Error("inventory ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("inventory ingest completed successfully")
}

func run(ctx context.Context, files []string, out string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: collect records whose name appears in 2+ feeds.
	slog.Info("pass 2: collecting confirmed records")

	confirmed, err := collectConfirmed(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "collect confirmed records")
	}

	slog.Info("confirmed products", slog.Int("count", len(confirmed)))

	if err := writeSeed(out, confirmed); err != nil {
		return errors.Wrapf(err, "write seed file %s", out)
	}
	return nil
}

// buildBloomFilters creates one bloom filter of product names per feed,
// concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamFeed(ctx, path, func(rec feedRecord) {
			filter.AddString(strings.ToLower(rec.name))
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("records", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_records", count),
		)

		filters[idx] = filter
		return nil
	}
}

// collectConfirmed re-streams each feed and keeps records whose name tests
// positive in another feed's bloom filter. Names confirmed by 2+ feeds are
// merged across files in file order.
func collectConfirmed(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]seed.Product, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(collectCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files.
	merged := make(map[string]uint)
	for _, r := range results {
		for name, mask := range r.masks {
			merged[name] |= mask
		}
	}

	// Keep names appearing in 2+ feeds; merge their records in file order.
	byName := make(map[string]seed.Product)
	var order []string
	for name, mask := range merged {
		if bits.OnesCount(mask) < 2 {
			continue
		}
		for _, r := range results {
			rec, ok := r.records[name]
			if !ok {
				continue
			}
			p, seen := byName[name]
			if !seen {
				p = seed.Product{
					Name:        rec.name,
					Price:       rec.price,
					Description: rec.description,
				}
				order = append(order, name)
			}
			p.Quantity += rec.quantity
			byName[name] = p
		}
	}

	sort.Strings(order)
	out := make([]seed.Product, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

func collectCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		res := fileResult{
			masks:   make(map[string]uint),
			records: make(map[string]feedRecord),
		}
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamFeed(ctx, path, func(rec feedRecord) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("records", count),
				)
			}

			name := strings.ToLower(rec.name)

			// Check whether this name appears in any OTHER feed's filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(name) {
					res.masks[name] |= fileBit
					if _, ok := res.records[name]; !ok {
						res.records[name] = rec
					}
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_records", count),
			slog.Int("candidates", len(res.masks)),
		)

		results[idx] = res
		return nil
	}
}

// streamFeed opens a gzip-compressed NDJSON feed and calls fn for each
// parsed record. Lines that fail to parse abort the stream.
func streamFeed(ctx context.Context, path string, fn func(rec feedRecord)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		rec, err := parseRecord(text)
		if err != nil {
			return errors.Wrapf(err, "parse %s line %d", path, line)
		}
		if rec.name == "" {
			continue
		}
		fn(rec)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// parseRecord decodes a single NDJSON product record.
func parseRecord(line string) (feedRecord, error) {
	var rec feedRecord

	d := jx.DecodeStr(line)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			rec.name = s
		case "price":
			n, err := d.Num()
			if err != nil {
				return errors.Wrap(err, "price")
			}
			price, err := decimal.NewFromString(n.String())
			if err != nil {
				return errors.Wrap(err, "price decimal")
			}
			rec.price = price
		case "description":
			s, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "description")
			}
			rec.description = s
		case "quantity":
			q, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			rec.quantity = q
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return feedRecord{}, err
	}
	return rec, nil
}

// writeSeed writes the merged products as the inventory seed array.
func writeSeed(path string, products []seed.Product) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal products")
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
