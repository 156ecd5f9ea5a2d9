package boundary

// Bool32 is a boolean with a fixed four byte layout.
type Bool32 uint32

const (
	False Bool32 = 0
	True  Bool32 = 1
)

// BoolOf converts a Go bool.
func BoolOf(v bool) Bool32 {
	if v {
		return True
	}
	return False
}

// Bool reports any non-zero value as true.
func (b Bool32) Bool() bool {
	return b != 0
}
