package domain

const (
	RoleAdmin           = "ADMIN"
	RoleBusinessOwner   = "BUSINESS_OWNER"
	RoleBusinessManager = "BUSINESS_MANAGER"
	RoleInfluencer      = "INFLUENCER"
	RoleCustomer        = "CUSTOMER"
	// RoleSystem is carried by service tokens (order service, ad server).
	RoleSystem = "SYSTEM"
)

type AttributionStatus string

const (
	AttributionClick      AttributionStatus = "click"
	AttributionConversion AttributionStatus = "conversion"
	AttributionPaid       AttributionStatus = "paid"
)

type SponsorshipStatus string

const (
	SponsorshipPending  SponsorshipStatus = "PENDING"
	SponsorshipApproved SponsorshipStatus = "APPROVED"
	SponsorshipActive   SponsorshipStatus = "ACTIVE"
	SponsorshipPaused   SponsorshipStatus = "PAUSED"
	SponsorshipExpired  SponsorshipStatus = "EXPIRED"
	SponsorshipRejected SponsorshipStatus = "REJECTED"
)

const (
	PauseReasonNone           = ""
	PauseReasonManual         = "MANUAL"
	PauseReasonDailyCap       = "DAILY_CAP"
	PauseReasonBudgetDepleted = "BUDGET_DEPLETED"
)

const (
	AudienceInfluencer = "influencer"
	AudienceSeller     = "seller"
)

const (
	NotifCommissionEarned    = "COMMISSION_EARNED"
	NotifCommissionPaid      = "COMMISSION_PAID"
	NotifSponsorshipPaused   = "SPONSORSHIP_PAUSED"
	NotifSponsorshipApproved = "SPONSORSHIP_APPROVED"
	NotifSponsorshipRejected = "SPONSORSHIP_REJECTED"
)

// BasisPointsDenominator is 100% expressed in basis points.
const BasisPointsDenominator = 10000

// DayLayout formats UTC calendar days (lastResetDay, metric buckets).
const DayLayout = "2006-01-02"
