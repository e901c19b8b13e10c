package token

import (
	"github.com/MrEthical07/goRefMon/ident"
	"github.com/MrEthical07/goRefMon/privilege"
)

// Compare reports whether a and b grant equivalent access: same user, same
// groups and privileges (order-insensitive) and, when both are restricted,
// the same restricted SIDs. A restricted and an unrestricted token never
// compare equal.
func Compare(a, b *Token) (bool, error) {
	if a == nil || b == nil {
		return false, ErrNoToken
	}
	if a == b {
		return true, nil
	}
	if a.IsRestricted() != b.IsRestricted() {
		return false, nil
	}

	sa, sb := a.snapshot(), b.snapshot()

	const attrMask = ident.GroupEnabled | ident.GroupUseForDenyOnly
	ua, ub := sa.userAndGroups[0], sb.userAndGroups[0]
	if !ua.SID.Equal(ub.SID) || ua.Attributes&attrMask != ub.Attributes&attrMask {
		return false, nil
	}
	if !sidSetsEqual(sa.userAndGroups[1:], sb.userAndGroups[1:]) {
		return false, nil
	}
	if a.IsRestricted() && !sidSetsEqual(sa.restricted, sb.restricted) {
		return false, nil
	}
	return privilegeSetsEqual(sa.privileges, sb.privileges), nil
}

func sidSetsEqual(a, b []ident.SIDAndAttributes) bool {
	if len(a) != len(b) {
		return false
	}
	const attrMask = ident.GroupEnabled | ident.GroupUseForDenyOnly
	same := func(x, y ident.SIDAndAttributes) bool {
		return x.SID.Equal(y.SID) && x.Attributes&attrMask == y.Attributes&attrMask
	}

	inOrder := true
	for i := range a {
		if !same(a[i], b[i]) {
			inOrder = false
			break
		}
	}
	if inOrder {
		return true
	}

	contains := func(set []ident.SIDAndAttributes, e ident.SIDAndAttributes) bool {
		for _, x := range set {
			if same(x, e) {
				return true
			}
		}
		return false
	}
	for _, e := range a {
		if !contains(b, e) {
			return false
		}
	}
	for _, e := range b {
		if !contains(a, e) {
			return false
		}
	}
	return true
}

func privilegeSetsEqual(a, b []privilege.LUIDAndAttributes) bool {
	if len(a) != len(b) {
		return false
	}
	same := func(x, y privilege.LUIDAndAttributes) bool {
		return x.LUID == y.LUID && x.Enabled() == y.Enabled()
	}

	inOrder := true
	for i := range a {
		if !same(a[i], b[i]) {
			inOrder = false
			break
		}
	}
	if inOrder {
		return true
	}

	contains := func(set []privilege.LUIDAndAttributes, p privilege.LUIDAndAttributes) bool {
		for _, x := range set {
			if same(x, p) {
				return true
			}
		}
		return false
	}
	for _, p := range a {
		if !contains(b, p) {
			return false
		}
	}
	for _, p := range b {
		if !contains(a, p) {
			return false
		}
	}
	return true
}

// IsChild reports whether candidate was filtered from caller.
func IsChild(caller, candidate *Token) bool {
	return candidate.parentID == caller.id
}

// IsSibling reports whether candidate shares caller's parent and logon.
func IsSibling(caller, candidate *Token) bool {
	return candidate.parentID == caller.parentID && candidate.authID == caller.authID
}
