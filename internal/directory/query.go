package directory

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/diewo77/multifactors/internal/models"
)

// SortField is a column the directory can be ordered by.
type SortField string

const (
	SortName       SortField = "name"
	SortEmail      SortField = "email"
	SortRole       SortField = "role"
	SortStatus     SortField = "status"
	SortCreatedAt  SortField = "created_at"
	SortLastActive SortField = "last_active"
)

// SortFields lists the accepted sort columns.
var SortFields = []SortField{SortName, SortEmail, SortRole, SortStatus, SortCreatedAt, SortLastActive}

// Direction is asc or desc.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// All disables the role or status filter.
const All = "all"

// Query filters and orders the directory view. The zero value lists every
// profile newest first.
type Query struct {
	Search string
	Role   string
	Status string
	Sort   SortField
	Dir    Direction
}

// DefaultQuery is created_at desc with no filter.
func DefaultQuery() Query {
	return Query{Role: All, Status: All, Sort: SortCreatedAt, Dir: Desc}
}

// ParseQuery reads q, role, status, sort and dir. Unknown values fall back
// to the defaults.
func ParseQuery(v url.Values) Query {
	q := DefaultQuery()
	q.Search = strings.TrimSpace(v.Get("q"))
	if r := v.Get("role"); models.Role(r).Valid() {
		q.Role = r
	}
	if s := v.Get("status"); models.Status(s).Valid() {
		q.Status = s
	}
	for _, f := range SortFields {
		if string(f) == v.Get("sort") {
			q.Sort = f
		}
	}
	if d := Direction(v.Get("dir")); d == Asc || d == Desc {
		q.Dir = d
	}
	return q
}

func (q Query) normalized() Query {
	if q.Role == "" {
		q.Role = All
	}
	if q.Status == "" {
		q.Status = All
	}
	if q.Sort == "" {
		q.Sort = SortCreatedAt
		if q.Dir == "" {
			q.Dir = Desc
		}
	}
	if q.Dir != Desc {
		q.Dir = Asc
	}
	return q
}

// Toggle returns the query a column header click produces: the same field
// flips direction, a new field starts ascending.
func (q Query) Toggle(field SortField) Query {
	q = q.normalized()
	if q.Sort == field {
		if q.Dir == Asc {
			q.Dir = Desc
		} else {
			q.Dir = Asc
		}
		return q
	}
	q.Sort = field
	q.Dir = Asc
	return q
}

// Values encodes q as URL query parameters.
func (q Query) Values() url.Values {
	q = q.normalized()
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Role != All {
		v.Set("role", q.Role)
	}
	if q.Status != All {
		v.Set("status", q.Status)
	}
	v.Set("sort", string(q.Sort))
	v.Set("dir", string(q.Dir))
	return v
}

// Apply filters and stably sorts profiles into a new slice.
func Apply(profiles []models.Profile, q Query) []models.Profile {
	q = q.normalized()
	needle := strings.ToLower(q.Search)
	out := make([]models.Profile, 0, len(profiles))
	for _, p := range profiles {
		if matches(&p, needle, q) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return less(&out[i], &out[j], q.Sort, q.Dir)
	})
	return out
}

func matches(p *models.Profile, needle string, q Query) bool {
	if needle != "" &&
		!strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), needle) &&
		!strings.Contains(strings.ToLower(p.Email), needle) &&
		!strings.Contains(strings.ToLower(p.Phone), needle) {
		return false
	}
	if q.Role != All && string(p.Role) != q.Role {
		return false
	}
	if q.Status != All && string(p.Status) != q.Status {
		return false
	}
	return true
}

// sortKey is a comparable value where absent values are tracked separately
// so they can be placed last ascending and first descending.
type sortKey struct {
	present bool
	s       string
	t       time.Time
}

func keyOf(p *models.Profile, f SortField) sortKey {
	str := func(v string) sortKey {
		return sortKey{present: v != "", s: strings.ToLower(v)}
	}
	switch f {
	case SortName:
		return str(p.FullName())
	case SortEmail:
		return str(p.Email)
	case SortRole:
		return str(string(p.Role))
	case SortStatus:
		return str(string(p.Status))
	case SortLastActive:
		if p.LastActive == nil {
			return sortKey{}
		}
		return sortKey{present: true, t: *p.LastActive}
	default:
		if p.CreatedAt.IsZero() {
			return sortKey{}
		}
		return sortKey{present: true, t: p.CreatedAt}
	}
}

// compare returns -1, 0 or 1 in ascending order with absent values last.
func compare(a, b sortKey) int {
	switch {
	case !a.present && !b.present:
		return 0
	case !a.present:
		return 1
	case !b.present:
		return -1
	}
	if c := strings.Compare(a.s, b.s); c != 0 {
		return c
	}
	return a.t.Compare(b.t)
}

func less(a, b *models.Profile, f SortField, dir Direction) bool {
	c := compare(keyOf(a, f), keyOf(b, f))
	if dir == Desc {
		return c > 0
	}
	return c < 0
}
