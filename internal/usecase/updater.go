package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/services/features"
	"QuantData/pkg/cache"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/util"
)

type UpdateOptions struct {
	// DaysBack bounds the first fetch of a symbol without a file. Zero means 365.
	DaysBack   int
	Overlap    int
	IncludeNow bool
}

// UpdateResult describes what happened to one symbol.
type UpdateResult struct {
	Symbol  string    `json:"symbol"`
	Rows    int       `json:"rows"`
	Fetched int       `json:"fetched"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Path    string    `json:"path"`
	Error   string    `json:"error,omitempty"`
}

// Updater brings canonical files up to date by re-fetching a small overlap
// before the last stored bucket.
type Updater struct {
	fetcher   *Fetcher
	store     drepo.CandleStore
	manifests drepo.ManifestStore
	locker    drepo.Locker
	lockTTL   time.Duration
	log       *applogger.Logger
	now       func() time.Time
}

func NewUpdater(fetcher *Fetcher, store drepo.CandleStore, manifests drepo.ManifestStore, locker drepo.Locker, lockTTL time.Duration, l *applogger.Logger) *Updater {
	if l == nil {
		l = applogger.Nop()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Updater{
		fetcher:   fetcher,
		store:     store,
		manifests: manifests,
		locker:    locker,
		lockTTL:   lockTTL,
		log:       l,
		now:       fetcher.now,
	}
}

// UpdateToNow updates every symbol in turn. Per-symbol failures are reported
// in the results; the returned error joins them.
func (u *Updater) UpdateToNow(ctx context.Context, symbols []string, tf drepo.Timeframe, opts UpdateOptions) ([]UpdateResult, error) {
	var (
		results []UpdateResult
		errs    []error
	)
	for _, s := range symbols {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		symbol := models.NormalizeSymbol(s)
		res, err := u.updateSymbol(ctx, symbol, tf, opts)
		if err != nil {
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			u.log.Warn("update skipped", applogger.String("symbol", symbol), applogger.Error(err))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (u *Updater) updateSymbol(ctx context.Context, symbol string, tf drepo.Timeframe, opts UpdateOptions) (UpdateResult, error) {
	base := models.BaseOf(symbol)
	res := UpdateResult{Symbol: symbol, Path: u.store.Path(base, tf)}

	if u.locker != nil {
		key := cache.UpdateLockKey(base, tf.String())
		ok, err := u.locker.TryLock(ctx, key, u.lockTTL)
		if err != nil {
			return res, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return res, drepo.ErrLocked
		}
		defer func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				u.log.Warn("release lock", applogger.String("key", key), applogger.Error(err))
			}
		}()
	}

	existing, err := u.store.Read(base, tf)
	if err != nil && !errors.Is(err, drepo.ErrNoData) {
		return res, err
	}
	var current models.Series
	if existing != nil {
		current = existing.Series
	}

	now := u.now().UTC()
	since, end := updateWindow(current, tf, opts, now)
	res.Start, res.End = since, end

	fetched, fetchErr := u.fetcher.FetchRange(ctx, symbol, tf, since, end)
	res.Fetched = len(fetched)

	final := current
	if len(fetched) > 0 {
		final = current.Merge(fetched)
		if err := u.store.Write(base, tf, final); err != nil {
			return res, err
		}
	}
	res.Rows = len(final)

	if len(final) > 0 {
		if err := u.manifests.WriteSymbol(base, tf, features.BuildManifest(symbol, tf.String(), final)); err != nil {
			return res, fmt.Errorf("write manifest: %w", err)
		}
	}
	u.log.Info("updated",
		applogger.String("symbol", symbol),
		applogger.Int("fetched", res.Fetched),
		applogger.Int("rows", res.Rows),
		applogger.String("since", since.Format(util.DateTimeLayout)),
		applogger.String("end", end.Format(util.DateTimeLayout)))
	return res, fetchErr
}

// updateWindow returns the fetch range: overlap bars before the last stored
// bucket (or DaysBack days back with no data) up to now or the end of yesterday.
func updateWindow(current models.Series, tf drepo.Timeframe, opts UpdateOptions, now time.Time) (time.Time, time.Time) {
	end := util.EndOfYesterday(now)
	if opts.IncludeNow {
		end = now
	}
	if last, ok := current.Last(); ok {
		return last.Bucket.Add(-time.Duration(opts.Overlap) * tf.Duration()), end
	}
	days := opts.DaysBack
	if days <= 0 {
		days = 365
	}
	return now.AddDate(0, 0, -days), end
}
