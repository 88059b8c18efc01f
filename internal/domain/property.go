package domain

type Property struct {
	ID         string
	ProfileID  string // owner
	Name       string
	Country    string
	PriceMinor int64 // nightly price
	Beds       int
	Baths      int
	Guests     int
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Profile struct {
	ID         string
	ExternalID string // id at the identity provider
	Username   string
	Role       Role
}

func (p Profile) IsAdmin() bool { return p.Role == RoleAdmin }

// Renter is the caller of a core operation. Profile is nil when the external
// identity has not created a profile yet.
type Renter struct {
	ExternalID string
	Profile    *Profile
}

func (r Renter) HasProfile() bool { return r.Profile != nil }
