package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used by background jobs inside the engine.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

func (a Actor) IsPrivileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// CanTransition decides whether a may move b to target. Customers can only
// cancel their own bookings; everything else needs a privileged actor.
func (a Actor) CanTransition(b *Booking, target BookingStatus) bool {
	if a.IsPrivileged() {
		return true
	}
	return a.Role == RoleCustomer && target == BookingCancelled && b.OwnedBy(a.ID)
}
