// Package refcache is the Reference Cache (spec.md §4.9): an in-memory,
// read-mostly snapshot of Brokers/Accounts/Routes/CopyRules that every
// hot-path lookup reads without a database round trip. It is modeled on
// the teacher's cache.CacheManager — an owned struct behind an RWMutex,
// not a distributed cache client used directly from call sites.
package refcache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/epic1st/shadowfix/internal/domain"
	"github.com/epic1st/shadowfix/internal/logging"
)

// Cache holds the current reference-data snapshot.
type Cache struct {
	mu sync.RWMutex

	brokers   map[uuid.UUID]domain.Broker
	accounts  map[uuid.UUID]domain.Account
	routes    map[uuid.UUID]domain.Route
	copyRules map[uuid.UUID]domain.CopyRule

	accountsByNumber map[string]uuid.UUID
	brokersByCode    map[string]uuid.UUID

	seedPath string
	logger   *logging.Logger
}

// New builds an empty Cache that loads its snapshot from seedPath.
func New(seedPath string, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		brokers:          make(map[uuid.UUID]domain.Broker),
		accounts:         make(map[uuid.UUID]domain.Account),
		routes:           make(map[uuid.UUID]domain.Route),
		copyRules:        make(map[uuid.UUID]domain.CopyRule),
		accountsByNumber: make(map[string]uuid.UUID),
		brokersByCode:    make(map[string]uuid.UUID),
		seedPath:         seedPath,
		logger:           logger.With(logging.Component("refcache")),
	}
}

// Refresh reloads the snapshot from the seed file, replacing the
// current contents atomically under the write lock.
func (c *Cache) Refresh(ctx context.Context) error {
	seed, err := loadSeed(c.seedPath)
	if err != nil {
		return fmt.Errorf("loading reference seed %s: %w", c.seedPath, err)
	}

	brokers := make(map[uuid.UUID]domain.Broker, len(seed.Brokers))
	accounts := make(map[uuid.UUID]domain.Account, len(seed.Accounts))
	accountsByNumber := make(map[string]uuid.UUID, len(seed.Accounts))
	routes := make(map[uuid.UUID]domain.Route, len(seed.Routes))
	copyRules := make(map[uuid.UUID]domain.CopyRule, len(seed.CopyRules))

	brokerByCode := make(map[string]uuid.UUID)
	for _, b := range seed.Brokers {
		id := uuid.New()
		brokers[id] = domain.Broker{ID: id, Name: b.Name, Code: b.Code, Active: b.Active}
		brokerByCode[b.Code] = id
	}

	accountIDByNumber := make(map[string]uuid.UUID)
	for _, a := range seed.Accounts {
		id := uuid.New()
		acctType := domain.AccountTypeShadow
		if a.Type == "PRIMARY" {
			acctType = domain.AccountTypePrimary
		}
		accounts[id] = domain.Account{
			ID: id, Number: a.Number, Type: acctType,
			BrokerID: brokerByCode[a.BrokerCode], StrategyKey: a.StrategyKey, Active: a.Active,
		}
		accountsByNumber[a.Number] = id
		accountIDByNumber[a.Number] = id
	}

	for _, r := range seed.Routes {
		id := uuid.New()
		rt := domain.RouteTypeNull
		switch r.RouteType {
		case "TYPE_0":
			rt = domain.RouteTypeZero
		case "TYPE_1":
			rt = domain.RouteTypeOne
		}
		routes[id] = domain.Route{
			ID: id, Name: r.Name, BrokerID: brokerByCode[r.BrokerCode],
			RouteType: rt, IsLocateRoute: r.IsLocateRoute, Priority: r.Priority,
		}
	}

	for _, cr := range seed.CopyRules {
		id := uuid.New()
		orderTypes := map[string]struct{}{}
		for _, ot := range cr.OrderTypes {
			orderTypes[ot] = struct{}{}
		}
		copyRules[id] = domain.CopyRule{
			ID:               id,
			PrimaryAccountID: accountIDByNumber[cr.PrimaryAccount],
			ShadowAccountID:  accountIDByNumber[cr.ShadowAccount],
			RatioType:        domain.RatioType(cr.RatioType),
			RatioValue:       cr.RatioValue,
			OrderTypes:       orderTypes,
			CopyRoute:        cr.CopyRoute,
			LocateRoute:      cr.LocateRoute,
			CopyBroker:       cr.CopyBroker,
			MinQuantity:      cr.MinQuantity,
			MaxQuantity:      cr.MaxQuantity,
			Priority:         cr.Priority,
			Active:           cr.Active,
		}
	}

	c.mu.Lock()
	c.brokers = brokers
	c.accounts = accounts
	c.accountsByNumber = accountsByNumber
	c.brokersByCode = brokerByCode
	c.routes = routes
	c.copyRules = copyRules
	c.mu.Unlock()

	c.logger.Info("reference cache refreshed",
		logging.Int("brokers", len(brokers)),
		logging.Int("accounts", len(accounts)),
		logging.Int("copyRules", len(copyRules)),
	)
	return nil
}

// AccountByNumber looks up an Account by its FIX Account (tag 1) value.
func (c *Cache) AccountByNumber(number string) (domain.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.accountsByNumber[number]
	if !ok {
		return domain.Account{}, false
	}
	return c.accounts[id], true
}

// BrokerByCode looks up a Broker by its short code.
func (c *Cache) BrokerByCode(code string) (domain.Broker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.brokersByCode[code]
	if !ok {
		return domain.Broker{}, false
	}
	return c.brokers[id], true
}

// CopyRulesForPrimary returns the active CopyRules targeting the given
// primary account, sorted by priority ascending then shadow account
// number lexicographically — the deterministic order spec.md §4.6
// requires for fan-out replication.
func (c *Cache) CopyRulesForPrimary(primaryAccountID uuid.UUID) []domain.CopyRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var rules []domain.CopyRule
	for _, r := range c.copyRules {
		if r.PrimaryAccountID == primaryAccountID && r.Active {
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return c.accounts[rules[i].ShadowAccountID].Number < c.accounts[rules[j].ShadowAccountID].Number
	})
	return rules
}

// Account resolves an account by ID.
func (c *Cache) Account(id uuid.UUID) (domain.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.accounts[id]
	return a, ok
}

// Route resolves a route by name.
func (c *Cache) RouteByName(name string) (domain.Route, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.routes {
		if r.Name == name {
			return r, true
		}
	}
	return domain.Route{}, false
}

// LocateRoutesForBroker returns the broker's locate-eligible routes
// (isLocateRoute=true), sorted by priority ascending, per spec.md
// §4.5 step 1's route-selection rule.
func (c *Cache) LocateRoutesForBroker(brokerID uuid.UUID) []domain.Route {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var routes []domain.Route
	for _, r := range c.routes {
		if r.BrokerID == brokerID && r.IsLocateRoute {
			routes = append(routes, r)
		}
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Priority < routes[j].Priority })
	return routes
}

// Ready reports whether the cache has been populated at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.accounts) > 0
}
