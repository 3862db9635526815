package market

import (
	"fmt"
	"strconv"
)

// Reference data is owned by external collaborators (identity service, room
// catalog). The engine only reads it; nestctl seed writes it for development.

// Role is an actor's marketplace role.
type Role string

const (
	RoleStudent Role = "student"
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
)

// Validate checks if the Role is a valid enum value.
func (r Role) Validate() error {
	switch r {
	case RoleStudent, RoleOwner, RoleAdmin:
		return nil
	default:
		return fmt.Errorf("unknown role: %q", r)
	}
}

// Actor is an authenticated marketplace user.
type Actor struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Role          Role   `json:"role" yaml:"role"`
	EmailVerified bool   `json:"email_verified" yaml:"email_verified"`
	PhoneVerified bool   `json:"phone_verified" yaml:"phone_verified"`
}

// Verified reports whether both email and phone have been verified.
func (a *Actor) Verified() bool {
	return a.EmailVerified && a.PhoneVerified
}

// Property is a building offered on the marketplace.
type Property struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	OwnerRef string `json:"owner_ref" yaml:"owner_ref"`
	City     string `json:"city" yaml:"city"`
}

// Room is a rentable unit within a property, with its listed prices.
type Room struct {
	ID                 string `json:"id" yaml:"id"`
	PropertyRef        string `json:"property_ref" yaml:"property_ref"`
	OwnerRef           string `json:"owner_ref" yaml:"owner_ref"`
	MonthlyRent        int64  `json:"monthly_rent" yaml:"monthly_rent"`
	SecurityDeposit    int64  `json:"security_deposit" yaml:"security_deposit"`
	MaintenanceMonthly int64  `json:"maintenance_monthly" yaml:"maintenance_monthly"`
}

// Validate checks the room's listed prices.
func (r *Room) Validate() error {
	if r.ID == "" || r.PropertyRef == "" || r.OwnerRef == "" {
		return fmt.Errorf("room requires id, property_ref and owner_ref")
	}
	if r.MonthlyRent <= 0 {
		return fmt.Errorf("monthly_rent must be positive, got %d", r.MonthlyRent)
	}
	if r.SecurityDeposit < 0 || r.MaintenanceMonthly < 0 {
		return fmt.Errorf("security_deposit and maintenance_monthly cannot be negative")
	}
	return nil
}

// ActorToHash converts an Actor to a Redis hash.
func ActorToHash(a *Actor) map[string]interface{} {
	return map[string]interface{}{
		"id":             a.ID,
		"name":           a.Name,
		"role":           string(a.Role),
		"email_verified": strconv.FormatBool(a.EmailVerified),
		"phone_verified": strconv.FormatBool(a.PhoneVerified),
	}
}

// HashToActor converts a Redis hash to an Actor.
func HashToActor(hash map[string]string) *Actor {
	return &Actor{
		ID:            hash["id"],
		Name:          hash["name"],
		Role:          Role(hash["role"]),
		EmailVerified: hash["email_verified"] == "true",
		PhoneVerified: hash["phone_verified"] == "true",
	}
}

// PropertyToHash converts a Property to a Redis hash.
func PropertyToHash(p *Property) map[string]interface{} {
	return map[string]interface{}{
		"id":        p.ID,
		"name":      p.Name,
		"owner_ref": p.OwnerRef,
		"city":      p.City,
	}
}

// HashToProperty converts a Redis hash to a Property.
func HashToProperty(hash map[string]string) *Property {
	return &Property{
		ID:       hash["id"],
		Name:     hash["name"],
		OwnerRef: hash["owner_ref"],
		City:     hash["city"],
	}
}

// RoomToHash converts a Room to a Redis hash.
func RoomToHash(r *Room) map[string]interface{} {
	return map[string]interface{}{
		"id":                  r.ID,
		"property_ref":        r.PropertyRef,
		"owner_ref":           r.OwnerRef,
		"monthly_rent":        r.MonthlyRent,
		"security_deposit":    r.SecurityDeposit,
		"maintenance_monthly": r.MaintenanceMonthly,
	}
}

// HashToRoom converts a Redis hash to a Room.
func HashToRoom(hash map[string]string) (*Room, error) {
	rent, err := strconv.ParseInt(hash["monthly_rent"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid monthly_rent field: %w", err)
	}
	deposit, _ := strconv.ParseInt(hash["security_deposit"], 10, 64)
	maintenance, _ := strconv.ParseInt(hash["maintenance_monthly"], 10, 64)

	return &Room{
		ID:                 hash["id"],
		PropertyRef:        hash["property_ref"],
		OwnerRef:           hash["owner_ref"],
		MonthlyRent:        rent,
		SecurityDeposit:    deposit,
		MaintenanceMonthly: maintenance,
	}, nil
}
