package school

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// DefaultPageSize is the number of items per page of the directory listings.
const DefaultPageSize = 10

var (
	// orderable fields of the school directory
	orderingFields  = map[string]bool{"name": true, "code": true, "created_at": true}
	defaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
)

// School is a tenant of the platform.
type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Logo      string    `json:"logo,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// MemberCounts are the number of members of a school, per role.
type MemberCounts struct {
	Students int `json:"students"`
	Teachers int `json:"teachers"`
	Admins   int `json:"admins"`
}

// DirectoryEntry is a School as listed in the directory.
type DirectoryEntry struct {
	School
	Count MemberCounts `json:"_count"`
}

// Directory is one page of the school directory.
type Directory struct {
	Data       []DirectoryEntry `json:"data"`
	Pagination core.Pagination  `json:"pagination"`
}

// Stats are the aggregate counts of one school.
type Stats struct {
	Students int `json:"students" db:"students"`
	Teachers int `json:"teachers" db:"teachers"`
	Classes  int `json:"classes" db:"classes"`
	Subjects int `json:"subjects" db:"subjects"`
}

// PlatformStats are the aggregate counts of the whole platform.
type PlatformStats struct {
	Schools  int `json:"schools" db:"schools"`
	Admins   int `json:"admins" db:"admins"`
	Teachers int `json:"teachers" db:"teachers"`
	Students int `json:"students" db:"students"`
	Parents  int `json:"parents" db:"parents"`
}

// Teacher is a teacher as listed in a school's directory.
type Teacher struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Username  string    `json:"username,omitempty"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// TeacherPage is one page of a school's teacher directory.
type TeacherPage struct {
	Data       []Teacher       `json:"data"`
	Pagination core.Pagination `json:"pagination"`
}

// NewSchool contains information needed to create a new School.
type NewSchool struct {
	Name    string `json:"name" validate:"required,max=120"`
	Code    string `json:"code" validate:"required,max=32,alphanum_"`
	Address string `json:"address" validate:"omitempty,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Email   string `json:"email" validate:"omitempty,email"`
	Logo    string `json:"logo" validate:"omitempty,url"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code, true /* lower */)
	ns.Address = core.CleanString(ns.Address)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Logo = core.CleanString(ns.Logo)
	return validate.Struct(ns)
}

// QueryFilter filters the school directory.
type QueryFilter struct {
	Search   string `query:"search" validate:"omitempty,max=100"`
	IsActive *bool  `query:"active"`
	Ordering []core.DBOrdering
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Clean()
	if err := validate.Struct(qf); err != nil {
		return err
	}
	for _, ord := range qf.Ordering {
		if !orderingFields[ord.Field] {
			return core.NewValidationError(
				ErrInvalidOrdering,
				core.FieldError{Field: "ordering", Error: fmt.Sprintf("cannot order by %q", ord.Field)},
			)
		}
	}
	return nil
}

// OrderingOrDefault returns the requested ordering, or newest first.
func (qf QueryFilter) OrderingOrDefault() []core.DBOrdering {
	if len(qf.Ordering) == 0 {
		return defaultOrdering
	}
	return qf.Ordering
}

// Shape is a canonical representation of the filter, used as cache key.
func (qf QueryFilter) Shape() string {
	active := "*"
	if qf.IsActive != nil {
		active = fmt.Sprint(*qf.IsActive)
	}
	ords := make([]string, 0, len(qf.Ordering))
	for _, o := range qf.OrderingOrDefault() {
		ords = append(ords, o.String())
	}
	return fmt.Sprintf("search=%s|active=%s|ordering=%s", strings.ToLower(qf.Search), active, strings.Join(ords, ","))
}

// TeacherFilter filters a school's teacher directory.
type TeacherFilter struct {
	Search  string `query:"search" validate:"omitempty,max=100"`
	ClassID string `query:"class_id" validate:"omitempty,max=64"`
}

func (tf *TeacherFilter) Validate(validate *validator.Validate) error {
	tf.Search = core.CleanString(tf.Search)
	return validate.Struct(tf)
}
