// Package identity turns user-supplied names into canonical subject identities.
package identity

import (
	"context"
	"errors"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/logger"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/profile"
)

// Source is the subset of the profile client the resolver depends on.
type Source interface {
	Lookup(ctx context.Context, name string) (profile.Account, error)
	Player(ctx context.Context, uuid string) (profile.PlayerRecord, error)
}

// Cache stores successful resolutions. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Identity, bool, error)
	Set(ctx context.Context, key string, id domain.Identity) error
}

// Resolver is read-only with respect to the ledger.
type Resolver struct {
	source Source
	cache  Cache
	group  singleflight.Group
	log    *logger.Logger
}

// NewResolver builds a Resolver. cache may be nil.
func NewResolver(source Source, cache Cache, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{source: source, cache: cache, log: log.With("component", "identity")}
}

// Resolve accepts a player name or a UUID in either accepted form and
// returns the canonical identity. Names that cannot exist, unknown accounts
// and accounts without game-mode profiles all yield domain.ErrNotFound.
// Service failures surface as *profile.ExternalServiceError.
func (r *Resolver) Resolve(ctx context.Context, nameOrID string) (domain.Identity, error) {
	input := strings.TrimSpace(nameOrID)

	var key string
	canonical, err := Canonicalize(input)
	switch {
	case err == nil:
		key = "uuid:" + canonical
	case ValidName(input):
		key = "name:" + strings.ToLower(input)
	default:
		return domain.Identity{}, domain.ErrNotFound
	}

	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.log.Warn("identity cache read failed", "key", key, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	// The shared lookup outlives any single caller's cancellation; the
	// profile client's per-call timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		if canonical != "" {
			return r.byUUID(shared, canonical, "")
		}
		return r.byName(shared, input)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return domain.Identity{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return domain.Identity{}, res.Err
	}
	id := res.Val.(domain.Identity)

	if r.cache != nil {
		for _, k := range []string{key, "uuid:" + id.UUID} {
			if err := r.cache.Set(ctx, k, id); err != nil {
				r.log.Warn("identity cache write failed", "key", k, "error", err)
			}
		}
	}
	return id, nil
}

func (r *Resolver) byName(ctx context.Context, name string) (domain.Identity, error) {
	account, err := r.source.Lookup(ctx, name)
	if err != nil {
		return domain.Identity{}, mapSourceError(err)
	}
	canonical, err := Canonicalize(account.ID)
	if err != nil {
		r.log.Warn("directory returned malformed id", "name", name, "id", account.ID)
		return domain.Identity{}, domain.ErrNotFound
	}
	fallback := account.Name
	if fallback == "" {
		fallback = name
	}
	return r.byUUID(ctx, canonical, fallback)
}

func (r *Resolver) byUUID(ctx context.Context, canonical, fallbackName string) (domain.Identity, error) {
	player, err := r.source.Player(ctx, canonical)
	if err != nil {
		return domain.Identity{}, mapSourceError(err)
	}
	if player.SkyBlock == nil || len(player.SkyBlock.Profiles) == 0 {
		r.log.Debug("player has no game-mode profiles", "uuid", canonical)
		return domain.Identity{}, domain.ErrNotFound
	}

	if id, err := Canonicalize(player.UUID); err == nil {
		canonical = id
	}
	name := player.DisplayName
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		name = canonical
	}

	return domain.Identity{
		UUID:        canonical,
		DisplayName: name,
		Profiles:    summarize(player.SkyBlock.Profiles),
	}, nil
}

// summarize orders profiles most recently saved first.
func summarize(profiles []profile.SkyBlockProfile) []domain.ProfileSummary {
	out := make([]domain.ProfileSummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, domain.ProfileSummary{
			ID:          p.ID,
			Name:        p.CuteName,
			LastSave:    p.LastSave,
			Purse:       p.Purse,
			BankBalance: p.BankBalance,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastSave.Equal(out[j].LastSave) {
			return out[i].LastSave.After(out[j].LastSave)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func mapSourceError(err error) error {
	if errors.Is(err, profile.ErrProfileNotFound) {
		return domain.ErrNotFound
	}
	return err
}
