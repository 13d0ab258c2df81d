package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/blockedby/spending-stats/internal/database"
)

// AgeGroup is one fixed, inclusive age range. Max == 0 means no upper bound.
type AgeGroup struct {
	Label string
	Min   int
	Max   int
}

// AgeGroups lists the buckets in display order.
var AgeGroups = []AgeGroup{
	{Label: "18-24", Min: 18, Max: 24},
	{Label: "25-30", Min: 25, Max: 30},
	{Label: "31-36", Min: 31, Max: 36},
	{Label: "37-47", Min: 37, Max: 47},
	{Label: ">47", Min: 48},
}

// AgeGroupAverage is the mean spending of one age group.
type AgeGroupAverage struct {
	AgeGroup        string  `json:"age_group"`
	AverageSpending float64 `json:"average_spending"`
}

// HighSpender is a row of the high_spenders table.
type HighSpender struct {
	UserID        int64 `json:"user_id"`
	TotalSpending int64 `json:"total_spending"`
}

// SpendingRepository runs the spending queries.
type SpendingRepository struct {
	db *database.DB
}

// NewSpendingRepository creates a new SpendingRepository.
func NewSpendingRepository(db *database.DB) *SpendingRepository {
	return &SpendingRepository{db: db}
}

// TotalSpent returns the sum of money_spent for a user, 0 when the user has no rows.
func (r *SpendingRepository) TotalSpent(ctx context.Context, userID int64) (float64, error) {
	q, err := r.db.Querier(ctx)
	if err != nil {
		return 0, fmt.Errorf("total spent: %w", err)
	}

	query, args, err := r.db.Builder().
		Select("COALESCE(SUM(money_spent), 0)").
		From("user_spending").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build total spent query: %w", err)
	}

	var total float64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("total spent: %w", err)
	}
	return total, nil
}

// AverageByAgeGroup returns the mean money_spent per age group, in AgeGroups
// order. Groups without members are omitted.
func (r *SpendingRepository) AverageByAgeGroup(ctx context.Context) ([]AgeGroupAverage, error) {
	q, err := r.db.Querier(ctx)
	if err != nil {
		return nil, fmt.Errorf("average by age group: %w", err)
	}

	query, args, err := r.db.Builder().
		Select(ageGroupCase()+" AS age_group", "AVG(us.money_spent) AS average_spending").
		From("user_spending us").
		Join("user_info ui ON us.user_id = ui.user_id").
		Where(sq.GtOrEq{"ui.age": AgeGroups[0].Min}).
		GroupBy("age_group").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build average by age group query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("average by age group: %w", err)
	}
	defer rows.Close()

	var result []AgeGroupAverage
	for rows.Next() {
		var avg AgeGroupAverage
		if err := rows.Scan(&avg.AgeGroup, &avg.AverageSpending); err != nil {
			return nil, fmt.Errorf("scan age group average: %w", err)
		}
		result = append(result, avg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("average by age group: %w", err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return ageGroupIndex(result[i].AgeGroup) < ageGroupIndex(result[j].AgeGroup)
	})
	return result, nil
}

// UpsertHighSpender inserts the user's total or overwrites the existing one
// in a single statement.
func (r *SpendingRepository) UpsertHighSpender(ctx context.Context, hs HighSpender) error {
	q, err := r.db.Querier(ctx)
	if err != nil {
		return fmt.Errorf("upsert high spender: %w", err)
	}

	query, args, err := r.db.Builder().
		Insert("high_spenders").
		Columns("user_id", "total_spending").
		Values(hs.UserID, hs.TotalSpending).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET total_spending = excluded.total_spending").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert high spender query: %w", err)
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert high spender %d: %w", hs.UserID, err)
	}
	return nil
}

func ageGroupCase() string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, g := range AgeGroups {
		if g.Max == 0 {
			fmt.Fprintf(&b, " WHEN ui.age >= %d THEN '%s'", g.Min, g.Label)
			continue
		}
		fmt.Fprintf(&b, " WHEN ui.age BETWEEN %d AND %d THEN '%s'", g.Min, g.Max, g.Label)
	}
	b.WriteString(" END")
	return b.String()
}

func ageGroupIndex(label string) int {
	for i, g := range AgeGroups {
		if g.Label == label {
			return i
		}
	}
	return len(AgeGroups)
}
