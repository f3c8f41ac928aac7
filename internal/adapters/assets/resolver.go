// Package assets resolves avatar and character icon images for rendering.
package assets

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/okian/slashboard/internal/adapters/imagecache"
	"github.com/okian/slashboard/pkg/logger"
	"github.com/okian/slashboard/pkg/metrics"
)

// DefaultAvatarCharID is the character whose icon stands in for a missing avatar.
const DefaultAvatarCharID = "1203"

// DefaultSharedFetchTimeout bounds a shared fetch once it no longer follows the
// context of the request that started it.
const DefaultSharedFetchTimeout = 10 * time.Second

const (
	kindAvatar = "avatar"
	kindIcon   = "icon"
)

// Assets maps identifiers to normalized images. Every requested avatar has an
// entry; icons that failed to load are absent.
type Assets struct {
	Avatars map[string]image.Image
	Icons   map[string]image.Image
}

// Resolver fetches each distinct identifier at most once per call and shares
// in-flight and cached results across calls.
type Resolver struct {
	source        Source
	cache         imagecache.Cache
	flight        singleflight.Group
	defaultAvatar string
	avatarSize    int
	iconSize      int
	fetchTimeout  time.Duration
	logger        logger.Logger

	placeholderOnce sync.Once
	placeholder     image.Image
}

// NewResolver creates a resolver backed by source.
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:        source,
		defaultAvatar: DefaultAvatarCharID,
		avatarSize:    AvatarSize,
		iconSize:      IconSize,
		fetchTimeout:  DefaultSharedFetchTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = imagecache.New()
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("assets")
	}
	return r
}

// Resolve loads every avatar in userIDs and every icon in charIDs. Both groups
// run concurrently and the call returns once all fetches have finished.
func (r *Resolver) Resolve(ctx context.Context, userIDs, charIDs []string) Assets {
	users := distinct(userIDs)
	chars := distinct(charIDs)

	out := Assets{
		Avatars: make(map[string]image.Image, len(users)),
		Icons:   make(map[string]image.Image, len(chars)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range users {
		id := id
		g.Go(func() error {
			img := r.avatar(gctx, id)
			mu.Lock()
			out.Avatars[id] = img
			mu.Unlock()
			return nil
		})
	}
	for _, id := range chars {
		id := id
		g.Go(func() error {
			img, err := r.icon(gctx, id)
			if err != nil {
				r.logger.Warn(gctx, "character icon unavailable",
					logger.String("charID", id),
					logger.Error(err),
				)
				return nil
			}
			mu.Lock()
			out.Icons[id] = img
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// avatar never fails: it falls back to the default avatar and then to a
// generated placeholder.
func (r *Resolver) avatar(ctx context.Context, userID string) image.Image {
	img, err := r.load(ctx, kindAvatar, userID, func(ctx context.Context) (image.Image, error) {
		if !isDigits(userID) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidID, userID)
		}
		raw, err := r.source.Avatar(ctx, userID)
		if err != nil {
			return nil, err
		}
		return CircleAvatar(raw, r.avatarSize), nil
	})
	if err == nil {
		return img
	}
	r.logger.Debug(ctx, "avatar fallback",
		logger.String("userID", userID),
		logger.Error(err),
	)
	return r.fallbackAvatar(ctx)
}

func (r *Resolver) fallbackAvatar(ctx context.Context) image.Image {
	img, err := r.load(ctx, kindAvatar, "default:"+r.defaultAvatar, func(ctx context.Context) (image.Image, error) {
		raw, err := r.source.Icon(ctx, r.defaultAvatar)
		if err != nil {
			return nil, err
		}
		return CircleAvatar(raw, r.avatarSize), nil
	})
	if err == nil {
		return img
	}
	r.logger.Warn(ctx, "default avatar unavailable, using placeholder", logger.Error(err))
	r.placeholderOnce.Do(func() {
		r.placeholder = Placeholder(r.avatarSize)
	})
	return r.placeholder
}

func (r *Resolver) icon(ctx context.Context, charID string) (image.Image, error) {
	return r.load(ctx, kindIcon, charID, func(ctx context.Context) (image.Image, error) {
		raw, err := r.source.Icon(ctx, charID)
		if err != nil {
			return nil, err
		}
		return SquareIcon(raw, r.iconSize), nil
	})
}

// load consults the cache, then coalesces concurrent fetches of the same key.
// The shared fetch is detached from the caller's cancellation so one caller
// leaving does not fail the others; each caller still stops waiting when its
// own context ends. Failures are not cached.
func (r *Resolver) load(ctx context.Context, kind, id string, fetch func(context.Context) (image.Image, error)) (image.Image, error) {
	key := kind + ":" + id
	if img, ok := r.cache.Get(key); ok {
		return img, nil
	}

	ch := r.flight.DoChan(key, func() (interface{}, error) {
		if img, ok := r.cache.Get(key); ok {
			return img, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()

		start := time.Now()
		img, err := fetch(fctx)
		metrics.RecordAssetFetchLatency(kind, float64(time.Since(start).Microseconds())/1000)
		if err != nil {
			metrics.RecordAssetFetch(kind, "error")
			return nil, err
		}
		metrics.RecordAssetFetch(kind, "ok")
		r.cache.Set(key, img)
		return img, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	}
}

// distinct drops blanks and duplicates, keeping first-seen order.
func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
