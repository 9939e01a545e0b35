// Package identity resolves account metadata from the PLC directory.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Trust status values derived from account age.
const (
	TrustStatusTrusted = "trusted"
	TrustStatusNew     = "new"
)

// newAccountWindow is the account age below which an author is "new".
const newAccountWindow = 24 * time.Hour

// resolveTimeout bounds each directory fetch.
const resolveTimeout = 5 * time.Second

// AccountAgeOracle resolves account creation times from the PLC directory
// audit log. The oracle fails open: any resolution failure yields a nil
// timestamp, which classifies as trusted.
type AccountAgeOracle struct {
	plcURL     string
	httpClient *http.Client
}

// NewAccountAgeOracle creates an oracle against the given PLC directory root
func NewAccountAgeOracle(plcURL string) *AccountAgeOracle {
	return &AccountAgeOracle{
		plcURL:     strings.TrimSuffix(plcURL, "/"),
		httpClient: &http.Client{Timeout: resolveTimeout},
	}
}

// auditLogEntry is the subset of a PLC audit log entry we read.
type auditLogEntry struct {
	CreatedAt string `json:"createdAt"`
}

// ResolveCreationDate fetches the directory audit log for a DID and returns
// the earliest entry's timestamp. Returns nil (not an error) on timeout,
// non-2xx, malformed payload, or an id type the directory can't resolve.
func (o *AccountAgeOracle) ResolveCreationDate(ctx context.Context, did string) *time.Time {
	parsed, err := syntax.ParseDID(did)
	if err != nil {
		return nil
	}
	// Only did:plc is resolvable through the directory; did:web and others
	// have no audit log.
	if parsed.Method() != "plc" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	auditURL := fmt.Sprintf("%s/%s/log/audit", o.plcURL, url.PathEscape(did))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, auditURL, nil)
	if err != nil {
		return nil
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}

	var entries []auditLogEntry
	if err := json.Unmarshal(body, &entries); err != nil || len(entries) == 0 {
		return nil
	}

	// The audit log is chronological; the first entry is account creation.
	createdAt, err := time.Parse(time.RFC3339, entries[0].CreatedAt)
	if err != nil {
		return nil
	}
	return &createdAt
}

// DetermineTrustStatus classifies an account by its creation time:
// "new" iff the timestamp is known and less than 24 hours old. Unknown age
// is trusted - the oracle fails open rather than blocking indexing.
func DetermineTrustStatus(createdAt *time.Time) string {
	if createdAt == nil {
		return TrustStatusTrusted
	}
	if time.Since(*createdAt) < newAccountWindow {
		return TrustStatusNew
	}
	return TrustStatusTrusted
}
