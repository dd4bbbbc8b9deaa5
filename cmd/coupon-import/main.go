// Command coupon-import ingests campaign coupon dumps into the database.
//
// Marketing delivers each campaign as several independently generated,
// gzip-compressed JSONL exports (one object per line, at minimum a
// "code" field). Exports are noisy: a code is only trusted when it
// appears in at least two of the dumps. The dumps are far too large to
// hold in memory, so the importer streams each file twice: pass 1
// builds one bloom filter per dump, pass 2 re-streams and keeps codes
// that hit another dump's filter.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/blocohub/checkout/internal/storage/postgres"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	progressEvery = 5_000_000
	minCodeLen    = 4
	maxCodeLen    = 32
)

// campaignRule is the discount rule applied to every imported code.
// All codes of one campaign share the same rule; only the codes vary.
type campaignRule struct {
	couponType         string
	percentage         decimal.Decimal
	maxDiscountInCents int64
	minPurchaseInCents int64
	cumulative         bool
	limitPerUser       int
	limitGlobal        int
	expiresAt          *time.Time
}

// fileResult holds candidate codes found in a single dump during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		numFiles    int
		databaseURL string

		couponType   string
		percentage   string
		maxDiscount  int64
		minPurchase  int64
		cumulative   bool
		limitPerUser int
		limitGlobal  int
		expires      string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing campaignN.jsonl.gz dumps")
	flag.IntVar(&numFiles, "num-files", 3, "number of campaign dump files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&couponType, "type", "subtotal", "coupon type: subtotal or shipping")
	flag.StringVar(&percentage, "percentage", "10", "discount percentage for every imported code")
	flag.Int64Var(&maxDiscount, "max-discount-cents", 0, "per-coupon discount cap in cents (0 = uncapped)")
	flag.Int64Var(&minPurchase, "min-purchase-cents", 0, "minimum purchase value in cents")
	flag.BoolVar(&cumulative, "cumulative", false, "whether imported coupons stack with other cumulative coupons")
	flag.IntVar(&limitPerUser, "limit-per-user", 1, "per-user usage limit (0 = unlimited)")
	flag.IntVar(&limitGlobal, "limit-global", 0, "global usage limit (0 = unlimited)")
	flag.StringVar(&expires, "expires", "", "expiration date, RFC 3339 (empty = never)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	rule, err := parseRule(couponType, percentage, maxDiscount, minPurchase, cumulative, limitPerUser, limitGlobal, expires)
	if err != nil {
		slog.Error("invalid campaign rule", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, numFiles, databaseURL, rule); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func parseRule(
	couponType, percentage string,
	maxDiscount, minPurchase int64,
	cumulative bool,
	limitPerUser, limitGlobal int,
	expires string,
) (campaignRule, error) {
	if couponType != "subtotal" && couponType != "shipping" {
		return campaignRule{}, errors.Errorf("unknown coupon type %q", couponType)
	}

	pct, err := decimal.NewFromString(percentage)
	if err != nil {
		return campaignRule{}, errors.Wrap(err, "parse percentage")
	}

	rule := campaignRule{
		couponType:         couponType,
		percentage:         pct,
		maxDiscountInCents: maxDiscount,
		minPurchaseInCents: minPurchase,
		cumulative:         cumulative,
		limitPerUser:       limitPerUser,
		limitGlobal:        limitGlobal,
	}

	if expires != "" {
		t, err := time.Parse(time.RFC3339, expires)
		if err != nil {
			return campaignRule{}, errors.Wrap(err, "parse expiration date")
		}
		rule.expiresAt = &t
	}

	return rule, nil
}

func run(ctx context.Context, dataDir string, numFiles int, databaseURL string, rule campaignRule) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("campaign%d.jsonl.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: find candidate codes appearing in 2+ dumps.
	slog.Info("pass 2: finding candidate codes")

	validCodes, err := findValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, pool, validCodes, rule); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per dump file, concurrently.
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

		if err := streamDump(ctx, path, func(code string) {
			filter.AddString(code)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each dump and checks codes against the OTHER
// dumps' bloom filters. A code is valid if it appears in 2 or more dumps.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all dumps.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	// Keep codes appearing in 2+ dumps.
	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamDump(ctx, path, func(code string) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("codes", count),
				)
			}

			// Check if this code appears in any OTHER dump's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamDump opens a gzip-compressed JSONL dump and calls fn for each
// well-formed code. Malformed lines and out-of-range codes are skipped.
func streamDump(ctx context.Context, path string, fn func(code string)) error {
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
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if code, ok := decodeLine(scanner.Bytes()); ok {
			fn(code)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// decodeLine extracts the "code" field from one JSONL line. Any other
// fields the export carries are ignored.
func decodeLine(line []byte) (string, bool) {
	var code string
	d := jx.DecodeBytes(line)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "code" {
			s, err := d.Str()
			if err != nil {
				return err
			}
			code = s
			return nil
		}
		return d.Skip()
	}); err != nil {
		return "", false
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return "", false
	}
	return code, true
}

const upsertCouponSQL = `INSERT INTO coupons (code, type, discount_percentage,
	max_discount_in_cents, min_purchase_value_in_cents, is_cumulative,
	usage_limit_per_user, usage_limit_global, expiration_date, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true)
	ON CONFLICT (code) DO UPDATE SET
		type = EXCLUDED.type,
		discount_percentage = EXCLUDED.discount_percentage,
		max_discount_in_cents = EXCLUDED.max_discount_in_cents,
		min_purchase_value_in_cents = EXCLUDED.min_purchase_value_in_cents,
		is_cumulative = EXCLUDED.is_cumulative,
		usage_limit_per_user = EXCLUDED.usage_limit_per_user,
		usage_limit_global = EXCLUDED.usage_limit_global,
		expiration_date = EXCLUDED.expiration_date,
		is_active = true`

// writeCoupons upserts all valid codes with the campaign rule.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string, rule campaignRule) error {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	var maxDiscount *int64
	if rule.maxDiscountInCents > 0 {
		maxDiscount = &rule.maxDiscountInCents
	}

	for i, code := range codes {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			code, rule.couponType, rule.percentage, maxDiscount,
			rule.minPurchaseInCents, rule.cumulative,
			rule.limitPerUser, rule.limitGlobal, rule.expiresAt,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", code)
		}

		if (i+1)%1000 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
