package studentlock

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/tuitionledger/internal/observability/metrics"
)

// ErrUnavailable is returned when a student lock cannot be obtained before the
// context is done.
var ErrUnavailable = metrics.ErrLockUnavailable

// Locker serializes ledger mutations per student. Holders of the lock for a
// student are the only writers of that student's charges, payments and
// monthly balances.
type Locker interface {
	// Lock blocks until every listed student is held by the caller. The returned
	// release func must be called exactly once.
	Lock(ctx context.Context, studentIDs ...string) (release func(), err error)
	Backend() string
}

// normalizeKeys dedupes and sorts ids so concurrent multi-student holders
// always acquire in the same order.
func normalizeKeys(studentIDs []string) []string {
	seen := make(map[string]struct{}, len(studentIDs))
	keys := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}

func unavailable(studentID string, cause error) error {
	if cause == nil {
		return fmt.Errorf("student %s: %w", studentID, ErrUnavailable)
	}
	return fmt.Errorf("student %s: %w: %v", studentID, ErrUnavailable, cause)
}
