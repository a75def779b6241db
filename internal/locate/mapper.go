package locate

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Mapping is what a QuoteReqID resolves to: the shadow account and
// primary order the locate workflow is acting on, plus the route it
// was quoted on.
type Mapping struct {
	ShadowAccountNumber string
	PrimaryClOrdID      string
	Route               string
}

// embeddedPrefix is the legacy long-form QuoteReqID spec.md §4.5
// still accepts as a fallback: QL_<shadowAccount>_<primaryClOrdId>_<route>.
const embeddedPrefix = "QL_"

// QuoteReqIdMapper stores the short-id -> (shadowAccount, primaryClOrdId,
// route) mapping spec.md §4.5 requires: emitters use a short base-36 id
// on the wire, and resolve it back through this mapper rather than
// parsing identity out of the id itself.
type QuoteReqIdMapper struct {
	mu      sync.Mutex
	seq     uint64
	entries map[string]Mapping
}

// NewQuoteReqIdMapper builds an empty mapper.
func NewQuoteReqIdMapper() *QuoteReqIdMapper {
	return &QuoteReqIdMapper{entries: make(map[string]Mapping)}
}

// New allocates a fresh short QuoteReqID for m and records its mapping.
func (m *QuoteReqIdMapper) New(shadowAccountNumber, primaryClOrdID, route string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := "Q" + strconv.FormatUint(m.seq, 36)
	m.entries[id] = Mapping{
		ShadowAccountNumber: shadowAccountNumber,
		PrimaryClOrdID:      primaryClOrdID,
		Route:               route,
	}
	return id
}

// Resolve looks up a short id. If the id is not known (for example
// after a process restart lost the in-memory map), the embedded legacy
// form is parsed as a best-effort recovery.
func (m *QuoteReqIdMapper) Resolve(id string) (Mapping, bool) {
	m.mu.Lock()
	mapping, ok := m.entries[id]
	m.mu.Unlock()
	if ok {
		return mapping, true
	}
	return parseEmbedded(id)
}

// parseEmbedded recovers a mapping from the legacy embedded form
// QL_<shadowAccount>_<primaryClOrdId>_<route>.
func parseEmbedded(id string) (Mapping, bool) {
	if !strings.HasPrefix(id, embeddedPrefix) {
		return Mapping{}, false
	}
	parts := strings.SplitN(strings.TrimPrefix(id, embeddedPrefix), "_", 3)
	if len(parts) != 3 {
		return Mapping{}, false
	}
	return Mapping{ShadowAccountNumber: parts[0], PrimaryClOrdID: parts[1], Route: parts[2]}, true
}

// embeddedForm renders the legacy long-form id, used only by tests that
// exercise the fallback-parsing path.
func embeddedForm(shadowAccountNumber, primaryClOrdID, route string) string {
	return fmt.Sprintf("%s%s_%s_%s", embeddedPrefix, shadowAccountNumber, primaryClOrdID, route)
}
