package notifications

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridecast/internal/types"
)

// Rotation windows for footer facts.
const (
	// factDedupWindow is how long a fact stays a duplicate for a rider.
	factDedupWindow = 30 * 24 * time.Hour
	// categoryRotationWindow is how long a category rests after use.
	categoryRotationWindow = 7 * 24 * time.Hour
	// factRetention is how long usage records are kept before pruning.
	factRetention = 90 * 24 * time.Hour
)

// FactStore is the persistence contract for fact usage history. Implemented
// by db.FunFactRepository.
type FactStore interface {
	Record(ctx context.Context, fact *types.FunFact) error
	UsedHashesSince(ctx context.Context, riderID string, since time.Time) (map[string]struct{}, error)
	CategoriesUsedSince(ctx context.Context, riderID string, since time.Time) ([]types.FactCategory, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FactPicker selects one footer fact per cycle from the embedded pool,
// avoiding facts a rider saw in the last 30 days and preferring a category
// unused in the last 7. Selection is deterministic for a given rider, day,
// and usage history.
type FactPicker struct {
	store  FactStore
	logger *slog.Logger
}

// NewFactPicker creates a FactPicker.
func NewFactPicker(store FactStore, logger *slog.Logger) *FactPicker {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactPicker{store: store, logger: logger}
}

// Pick chooses and records a fact for the rider. A store read failure
// degrades to picking without history rather than dropping the footer; a
// record failure is logged and the fact still returned, risking at worst a
// repeat.
func (p *FactPicker) Pick(ctx context.Context, riderID string, now time.Time) (*types.FunFact, error) {
	usedHashes, err := p.store.UsedHashesSince(ctx, riderID, now.Add(-factDedupWindow))
	if err != nil {
		p.logger.WarnContext(ctx, "fact history unavailable, picking without dedup",
			"rider_id", riderID, "error", err)
		usedHashes = map[string]struct{}{}
	}

	restedCategories, err := p.store.CategoriesUsedSince(ctx, riderID, now.Add(-categoryRotationWindow))
	if err != nil {
		restedCategories = nil
	}
	rested := make(map[types.FactCategory]struct{}, len(restedCategories))
	for _, c := range restedCategories {
		rested[c] = struct{}{}
	}

	category, content := selectFact(usedHashes, rested, now)

	fact := &types.FunFact{
		ID:          uuid.New().String(),
		RiderID:     riderID,
		Content:     content,
		ContentHash: HashFactContent(content),
		Category:    category,
		UsedAt:      now,
	}

	if err := p.store.Record(ctx, fact); err != nil {
		p.logger.WarnContext(ctx, "failed to record fact usage",
			"rider_id", riderID, "category", category, "error", err)
	}

	// Opportunistic retention pruning; failure is harmless.
	if pruned, err := p.store.DeleteBefore(ctx, now.Add(-factRetention)); err == nil && pruned > 0 {
		p.logger.InfoContext(ctx, "pruned expired fact records", "count", pruned)
	}

	return fact, nil
}

// selectFact walks categories starting at the day's rotation offset, skipping
// recently used categories on the first sweep, then picks the first unused
// fact within the chosen category. With the whole pool exhausted, the day's
// rotation slot repeats.
func selectFact(usedHashes map[string]struct{}, rested map[types.FactCategory]struct{}, now time.Time) (types.FactCategory, string) {
	order := categoryOrder(now)

	// First sweep honors category rest; second ignores it.
	for _, honorRest := range []bool{true, false} {
		for _, category := range order {
			if honorRest {
				if _, recent := rested[category]; recent {
					continue
				}
			}
			for _, content := range factPool[category] {
				if _, seen := usedHashes[HashFactContent(content)]; seen {
					continue
				}
				return category, content
			}
		}
	}

	// Everything used within the window; repeat deterministically.
	category := order[0]
	pool := factPool[category]
	return category, pool[now.YearDay()%len(pool)]
}

// categoryOrder rotates the canonical category list by the day of year so
// consecutive days start from different categories.
func categoryOrder(now time.Time) []types.FactCategory {
	all := types.AllFactCategories
	offset := now.YearDay() % len(all)
	order := make([]types.FactCategory, 0, len(all))
	order = append(order, all[offset:]...)
	order = append(order, all[:offset]...)
	return order
}

// HashFactContent returns the SHA-256 of the lowercased, trimmed content,
// the identity used for dedup.
func HashFactContent(content string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(content))))
	return hex.EncodeToString(sum[:])
}

// factPool is the embedded seed list per category.
var factPool = map[types.FactCategory][]string{
	types.FactQuotes: {
		"\"Four wheels move the body. Two wheels move the soul.\" - Unknown",
		"\"You do not need a therapist if you own a motorcycle.\" - Dan Aykroyd",
		"\"Faster, faster, until the thrill of speed overcomes the fear of death.\" - Hunter S. Thompson",
		"\"Life is not about waiting for the storm to pass, it is about learning to ride in the rain.\" - adapted from Vivian Greene",
	},
	types.FactSafetyTips: {
		"The first twenty minutes of rainfall are the most slippery: oil and rubber residue float before washing away.",
		"Covering the front brake at intersections cuts reaction time by roughly half a second, about 40 feet at 55 mph.",
		"Most multi-vehicle motorcycle crashes happen at intersections when a car turns left across the rider's path.",
		"Wind gusts are strongest at bridge crossings and gaps between buildings; set up on the upwind third of your lane.",
	},
	types.FactHistory: {
		"The first production motorcycle, the Hildebrand & Wolfmuller of 1894, had no clutch and no brakes worth the name.",
		"Harley-Davidson's first factory in 1903 was a 10x15 foot wooden shed with the words carved into the door.",
		"The Honda Super Cub is the most produced motor vehicle in history, passing 100 million units in 2017.",
		"During WWII, Harley-Davidson produced about 90,000 WLA models for the military, nicknamed the Liberator.",
	},
	types.FactTechnical: {
		"Counter-steering is how every motorcycle turns above walking pace: push left to go left.",
		"A modern sportbike engine can rev past 15,000 rpm, meaning each valve opens and closes over 125 times per second.",
		"Motorcycle tires are profiled round, not flat, so the contact patch stays consistent while leaned over.",
		"Rain grooves in tires do not grip water; they evacuate it, up to a gallon per second at highway speed.",
	},
	types.FactRidingTips: {
		"Look through the corner to where you want to go; the bike follows your eyes.",
		"Smooth throttle inputs settle the chassis: roll on gently as you exit a corner to stabilize the suspension.",
		"In cold weather, your tires need several miles to reach grip temperature; ride the first stretch gently.",
		"Ride your own ride: pace set by someone else's skill level is the fastest route to a mistake.",
	},
	types.FactInspiration: {
		"Every experienced rider was once a beginner who refused to quit.",
		"The best rides are measured in smiles per gallon, not miles per hour.",
		"A rainy forecast today just makes the next clear morning sweeter.",
		"Skill is what remains when the adrenaline wears off; ride to build it every day.",
	},
}
