package enums

import "fmt"

// ActorRole represents the role an authenticated actor holds when driving
// order transitions.
type ActorRole string

const (
	ActorRoleOwner    ActorRole = "owner"
	ActorRoleManager  ActorRole = "manager"
	ActorRoleStaff    ActorRole = "staff"
	ActorRoleDriver   ActorRole = "driver"
	ActorRoleCustomer ActorRole = "customer"
)

var validActorRoles = []ActorRole{
	ActorRoleOwner,
	ActorRoleManager,
	ActorRoleStaff,
	ActorRoleDriver,
	ActorRoleCustomer,
}

// Capability is a coarse permission consumed by the order lifecycle rules.
type Capability string

const (
	// CapabilityManageOrders covers confirm/reject decisions on behalf of
	// the restaurant.
	CapabilityManageOrders Capability = "manage_orders"
	// CapabilityPrepareOrders covers kitchen progress updates.
	CapabilityPrepareOrders Capability = "prepare_orders"
	// CapabilityDeliverOrders covers courier progress updates.
	CapabilityDeliverOrders Capability = "deliver_orders"
)

var capabilitiesByRole = map[ActorRole][]Capability{
	ActorRoleOwner:   {CapabilityManageOrders, CapabilityPrepareOrders},
	ActorRoleManager: {CapabilityManageOrders, CapabilityPrepareOrders},
	ActorRoleStaff:   {CapabilityPrepareOrders},
	ActorRoleDriver:  {CapabilityDeliverOrders},
}

// HasCapability reports whether the role grants the given capability.
func (a ActorRole) HasCapability(capability Capability) bool {
	for _, granted := range capabilitiesByRole[a] {
		if granted == capability {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
