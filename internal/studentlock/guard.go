package studentlock

import (
	"context"
	"sort"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/tuitionledger/internal/observability/context"
	studentdomain "github.com/smallbiznis/tuitionledger/internal/student/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type GuardParams struct {
	fx.In

	DB       *gorm.DB
	Locker   Locker
	Students studentdomain.Repository
}

// Guard runs ledger mutations with the students' locks held and their
// directory rows locked for the duration of one transaction.
type Guard struct {
	db       *gorm.DB
	locker   Locker
	students studentdomain.Repository
}

func NewGuard(p GuardParams) *Guard {
	return &Guard{db: p.DB, locker: p.Locker, students: p.Students}
}

// WithStudents acquires the locks for ids in ascending order, opens a
// transaction, row-locks the students and calls fn. Either everything fn wrote
// commits or nothing does.
func (g *Guard) WithStudents(ctx context.Context, ids []snowflake.ID, fn func(tx *gorm.DB) error) error {
	sorted := append([]snowflake.ID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	keys := make([]string, 0, len(sorted))
	for _, id := range sorted {
		keys = append(keys, id.String())
	}

	ctx = obscontext.WithStudentIDs(ctx, keys...)
	release, err := g.locker.Lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := g.students.LockForUpdate(ctx, tx, sorted); err != nil {
			return err
		}
		return fn(tx)
	})
}
