package ident

const (
	NullAuthority           uint64 = 0
	WorldAuthority          uint64 = 1
	NTAuthority             uint64 = 5
	MandatoryLabelAuthority uint64 = 16
)

// Well-known identities referenced by token construction and audit records.
var (
	EveryoneSID           = MustSID(WorldAuthority, 0)
	NullSID               = MustSID(NullAuthority, 0)
	NetworkSID            = MustSID(NTAuthority, 2)
	InteractiveSID        = MustSID(NTAuthority, 4)
	AnonymousSID          = MustSID(NTAuthority, 7)
	AuthenticatedUsersSID = MustSID(NTAuthority, 11)
	RestrictedCodeSID     = MustSID(NTAuthority, 12)
	LocalSystemSID        = MustSID(NTAuthority, 18)
	LocalServiceSID       = MustSID(NTAuthority, 19)
	NetworkServiceSID     = MustSID(NTAuthority, 20)
	AdministratorsSID     = MustSID(NTAuthority, 32, 544)
	UsersSID              = MustSID(NTAuthority, 32, 545)
)
