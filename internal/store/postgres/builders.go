package postgres

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/sudo-init-do/servicehub/internal/jobs"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

var requestColumns = []interface{}{
	"id", "customer_id", "worker_id", "listing_type", "price", "duration", "scheduled_at",
	"address", "message", "status", "is_paid", "payment_ref", "created_at", "updated_at",
}

var profileColumns = []interface{}{
	"id", "user_id", "display_name", "category", "skills", "description", "charge_type", "price",
	"service_area", "availability", "languages", "listing_type", "verified", "pro_worker",
	"rating", "total_reviews", "created_at", "updated_at",
}

var jobColumns = []interface{}{
	"id", "employer_id", "title", "description", "category", "salary", "salary_type",
	"location", "requirements", "status", "created_at",
}

func listRequestsQuery(f lifecycle.RequestFilter) (string, []interface{}, error) {
	ds := dialect.From("service_requests").Prepared(true).Select(requestColumns...)
	ex := goqu.Ex{}
	if f.CustomerID != "" {
		ex["customer_id"] = f.CustomerID
	}
	if f.WorkerID != "" {
		ex["worker_id"] = f.WorkerID
	}
	if f.Status != "" {
		ex["status"] = string(f.Status)
	}
	if len(ex) > 0 {
		ds = ds.Where(ex)
	}
	ds = ds.Order(goqu.C("created_at").Desc(), goqu.C("id").Asc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}
	return ds.ToSQL()
}

func profileConditions(f workers.Filter) []exp.Expression {
	var where []exp.Expression
	if f.Category != "" {
		where = append(where, goqu.C("category").Eq(f.Category))
	}
	if f.ListingType != "" {
		where = append(where, goqu.C("listing_type").Eq(string(f.ListingType)))
	}
	if f.Availability != "" {
		where = append(where, goqu.C("availability").Eq(string(f.Availability)))
	}
	if f.Verified != nil {
		where = append(where, goqu.C("verified").Eq(*f.Verified))
	}
	if f.MinPrice != nil {
		where = append(where, goqu.C("price").Gte(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		where = append(where, goqu.C("price").Lte(*f.MaxPrice))
	}
	if f.MinRating != nil {
		where = append(where, goqu.C("rating").Gte(*f.MinRating))
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		where = append(where, goqu.Or(
			goqu.C("display_name").ILike(pattern),
			goqu.C("description").ILike(pattern),
			goqu.L("EXISTS (SELECT 1 FROM unnest(skills) AS skill WHERE skill ILIKE ?)", pattern),
		))
	}
	return where
}

func searchProfilesQuery(f workers.Filter) (string, []interface{}, error) {
	f = f.Normalize()
	ds := dialect.From("worker_profiles").Prepared(true).Select(profileColumns...)
	if where := profileConditions(f); len(where) > 0 {
		ds = ds.Where(where...)
	}
	ds = ds.Order(
		goqu.C("verified").Desc(),
		goqu.C("rating").Desc(),
		goqu.C("pro_worker").Desc(),
		goqu.C("id").Asc(),
	).Limit(uint(f.Limit))
	if f.Skip > 0 {
		ds = ds.Offset(uint(f.Skip))
	}
	return ds.ToSQL()
}

func countProfilesQuery(f workers.Filter) (string, []interface{}, error) {
	ds := dialect.From("worker_profiles").Prepared(true).Select(goqu.COUNT(goqu.Star()))
	if where := profileConditions(f); len(where) > 0 {
		ds = ds.Where(where...)
	}
	return ds.ToSQL()
}

func listJobsQuery(f jobs.Filter) (string, []interface{}, error) {
	ds := dialect.From("job_posts").Prepared(true).Select(jobColumns...)
	ex := goqu.Ex{}
	if f.Category != "" {
		ex["category"] = f.Category
	}
	if f.Status != "" {
		ex["status"] = string(f.Status)
	}
	if len(ex) > 0 {
		ds = ds.Where(ex)
	}
	return ds.Order(goqu.C("created_at").Desc()).Limit(jobs.ListLimit).ToSQL()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
