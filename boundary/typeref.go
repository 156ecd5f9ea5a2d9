package boundary

// TypeRef is a cached identifier for a type, member or attribute descriptor.
// Zero means "no type".
type TypeRef int32

// Valid reports whether r refers to a descriptor.
func (r TypeRef) Valid() bool {
	return r > 0
}
