package domain

type Capability string

const (
	CapManageSponsorship   Capability = "sponsorship:manage"
	CapModerateSponsorship Capability = "sponsorship:moderate"
	CapChargeSponsorship   Capability = "sponsorship:charge"
	CapManageAffiliate     Capability = "affiliate:manage"
	CapRecordConversion    Capability = "attribution:convert"
	CapPayoutCommission    Capability = "attribution:payout"
	CapRecomputeRanking    Capability = "ranking:recompute"
)

var capabilities = map[string]map[Capability]struct{}{
	RoleAdmin: set(
		CapManageSponsorship, CapModerateSponsorship, CapChargeSponsorship,
		CapManageAffiliate, CapRecordConversion, CapPayoutCommission, CapRecomputeRanking,
	),
	RoleBusinessOwner:   set(CapManageSponsorship),
	RoleBusinessManager: set(CapManageSponsorship),
	RoleInfluencer:      set(CapManageAffiliate),
	RoleSystem:          set(CapChargeSponsorship, CapRecordConversion),
	RoleCustomer:        set(),
}

func set(caps ...Capability) map[Capability]struct{} {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return m
}

// HasCapability reports whether role grants capability. Unknown roles grant nothing.
func HasCapability(role string, capability Capability) bool {
	_, ok := capabilities[role][capability]
	return ok
}

// IsBusinessRole is true for the roles that act on behalf of one business.
func IsBusinessRole(role string) bool {
	return role == RoleBusinessOwner || role == RoleBusinessManager
}

// Actor is the authenticated caller of a ledger operation.
type Actor struct {
	UserID     string
	Role       string
	BusinessID string
}

func (a Actor) Can(capability Capability) bool { return HasCapability(a.Role, capability) }
