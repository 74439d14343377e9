package entity

import (
	"fmt"
	"strings"
	"time"
)

// Role is the account type a profile belongs to.
type Role string

const (
	RoleNone      Role = ""
	RoleAdmin     Role = "admin"
	RoleEmployer  Role = "employer"
	RoleJobseeker Role = "jobseeker"
)

// SuperAdmin is the elevated value of AdminProfile.Role.
const SuperAdmin = "super_admin"

// ProbeOrder is the fixed order in which the profile tables are searched.
var ProbeOrder = []Role{RoleAdmin, RoleEmployer, RoleJobseeker}

// ParseRole accepts the three account types and the empty string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleNone, RoleAdmin, RoleEmployer, RoleJobseeker:
		return r, nil
	}
	return RoleNone, fmt.Errorf("unknown account type %q", s)
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployer || r == RoleJobseeker
}

// Table names the profile table backing r.
func (r Role) Table() string {
	switch r {
	case RoleAdmin:
		return "admin_profiles"
	case RoleEmployer:
		return "employer_profiles"
	case RoleJobseeker:
		return "jobseeker_profiles"
	}
	return ""
}

// Article returns the indefinite article used in user-facing messages.
func (r Role) Article() string {
	if r != "" && strings.ContainsRune("aeiou", rune(strings.ToLower(string(r))[0])) {
		return "an"
	}
	return "a"
}

// Profile is the role-tagged union of the three profile shapes plus the
// synthesized default. Each variant carries only its own fields.
type Profile interface {
	ProfileID() string
	ProfileEmail() string
	// UserType is the stored usertype tag, or the table's implied role when
	// the tag is absent.
	UserType() Role
	// Source is the role whose table the row came from; RoleNone for DefaultProfile.
	Source() Role
}

func normalizeTag(tag string, implied Role) Role {
	if t := strings.TrimSpace(tag); t != "" {
		return Role(strings.ToLower(t))
	}
	return implied
}

type AdminProfile struct {
	ID        string
	Email     string
	Role      string // admin or super_admin
	Tag       string // usertype column
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *AdminProfile) ProfileID() string    { return p.ID }
func (p *AdminProfile) ProfileEmail() string { return p.Email }
func (p *AdminProfile) UserType() Role       { return normalizeTag(p.Tag, RoleAdmin) }
func (p *AdminProfile) Source() Role         { return RoleAdmin }

// IsSuperAdmin reports whether the admin row carries the elevated role.
func (p *AdminProfile) IsSuperAdmin() bool { return p.Role == SuperAdmin }

type EmployerProfile struct {
	ID                 string
	Email              string
	BusinessName       string
	CompanyLogoURL     string
	VerificationStatus string
	Tag                string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (p *EmployerProfile) ProfileID() string    { return p.ID }
func (p *EmployerProfile) ProfileEmail() string { return p.Email }
func (p *EmployerProfile) UserType() Role       { return normalizeTag(p.Tag, RoleEmployer) }
func (p *EmployerProfile) Source() Role         { return RoleEmployer }

type JobseekerProfile struct {
	ID                string
	Email             string
	FirstName         string
	LastName          string
	Suffix            string
	Phone             string
	ProfilePictureURL string
	ResumeURL         string
	Tag               string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *JobseekerProfile) ProfileID() string    { return p.ID }
func (p *JobseekerProfile) ProfileEmail() string { return p.Email }
func (p *JobseekerProfile) UserType() Role       { return normalizeTag(p.Tag, RoleJobseeker) }
func (p *JobseekerProfile) Source() Role         { return RoleJobseeker }

// DefaultProfile is synthesized when an identity has no row in any table.
// Its user type is always jobseeker, whatever role the caller expected.
type DefaultProfile struct {
	ID    string
	Email string
}

func (p *DefaultProfile) ProfileID() string    { return p.ID }
func (p *DefaultProfile) ProfileEmail() string { return p.Email }
func (p *DefaultProfile) UserType() Role       { return RoleJobseeker }
func (p *DefaultProfile) Source() Role         { return RoleNone }

// ProfileView flattens a profile for JSON responses.
func ProfileView(p Profile) map[string]any {
	if p == nil {
		return nil
	}
	out := map[string]any{
		"id":       p.ProfileID(),
		"email":    p.ProfileEmail(),
		"userType": p.UserType(),
	}
	switch v := p.(type) {
	case *AdminProfile:
		out["role"] = v.Role
	case *EmployerProfile:
		out["business_name"] = v.BusinessName
		out["company_logo_url"] = v.CompanyLogoURL
		out["verification_status"] = v.VerificationStatus
	case *JobseekerProfile:
		out["first_name"] = v.FirstName
		out["last_name"] = v.LastName
		out["suffix"] = v.Suffix
		out["phone"] = v.Phone
		out["profile_picture_url"] = v.ProfilePictureURL
		out["resume_url"] = v.ResumeURL
	case *DefaultProfile:
		out["default"] = true
	}
	return out
}
