// Package permission holds the types a player's permission checks run on.
//
// The proxy itself grants nothing. PermissionsSetupEvent subscribers install
// a Func for each player during login.
package permission

// TriState is the answer to a permission check.
type TriState uint8

// A permission that is neither granted nor denied is Undefined.
const (
	Undefined TriState = iota
	True
	False
)

// Bool is true only for True.
func (t TriState) Bool() bool { return t == True }

func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "undefined"
}

// Func answers permission checks for one subject.
type Func func(permission string) TriState

// Subject is anything permissions are checked against.
type Subject interface {
	PermissionValue(permission string) TriState
	// HasPermission is PermissionValue(permission).Bool().
	HasPermission(permission string) bool
}

// DefaultFunc leaves every permission Undefined.
var DefaultFunc Func = Fixed(Undefined)

// Fixed answers every permission with t.
func Fixed(t TriState) Func {
	return func(string) TriState { return t }
}
