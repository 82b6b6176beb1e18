package user

import "fmt"

// PermissionLevel orders what a caller may do
type PermissionLevel int

const (
	LevelNormal PermissionLevel = iota
	LevelAdmin
)

// String returns the level name used in replies
func (l PermissionLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParsePermissionLevel converts a name to a PermissionLevel
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch s {
	case "normal":
		return LevelNormal, nil
	case "admin":
		return LevelAdmin, nil
	default:
		return 0, fmt.Errorf("invalid permission level: %s", s)
	}
}

// HasPermission reports whether actual satisfies required
func HasPermission(actual, required PermissionLevel) bool {
	return actual >= required
}
