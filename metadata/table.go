package metadata

import (
	"slices"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/scripthost/boundary"
)

// Table is the static descriptor set of one module.
type Table struct {
	Type       Descriptor
	Methods    []Descriptor
	Fields     []Descriptor
	Attributes []Descriptor
}

// TableFor builds the descriptor table of a compiled module: the module
// itself, its exported functions, its exported memories and its custom
// sections. Entries are sorted by name.
func TableFor(id boundary.ModuleID, name string, compiled wazero.CompiledModule, sigs Signatures) *Table {
	t := &Table{
		Type: Descriptor{Module: id, Kind: KindType, Name: name},
	}

	for export, def := range compiled.ExportedFunctions() {
		sig := coreSignature(def)
		if s, ok := sigs[export]; ok {
			sig = s.Text
		}
		t.Methods = append(t.Methods, Descriptor{
			Module:    id,
			Kind:      KindMethod,
			Owner:     name,
			Name:      export,
			Signature: sig,
		})
	}

	for export, def := range compiled.ExportedMemories() {
		sig := "memory " + pages(def.Min())
		if hi, ok := def.Max(); ok {
			sig += ".." + pages(hi)
		}
		t.Fields = append(t.Fields, Descriptor{
			Module:    id,
			Kind:      KindField,
			Owner:     name,
			Name:      export,
			Signature: sig,
		})
	}

	for _, cs := range compiled.CustomSections() {
		t.Attributes = append(t.Attributes, Descriptor{
			Module: id,
			Kind:   KindAttribute,
			Owner:  name,
			Name:   cs.Name(),
		})
	}

	byName := func(a, b Descriptor) int { return strings.Compare(a.Name, b.Name) }
	slices.SortFunc(t.Methods, byName)
	slices.SortFunc(t.Fields, byName)
	slices.SortStableFunc(t.Attributes, byName)
	return t
}

// All returns the type descriptor followed by every member.
func (t *Table) All() []Descriptor {
	out := make([]Descriptor, 0, 1+len(t.Methods)+len(t.Fields)+len(t.Attributes))
	out = append(out, t.Type)
	out = append(out, t.Methods...)
	out = append(out, t.Fields...)
	out = append(out, t.Attributes...)
	return out
}

// Method returns the descriptor of an exported function.
func (t *Table) Method(name string) (Descriptor, bool) {
	for _, d := range t.Methods {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

func coreSignature(def api.FunctionDefinition) string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range def.ParamTypes() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteByte(')')
	results := def.ResultTypes()
	if len(results) == 1 {
		b.WriteString(" -> ")
		b.WriteString(api.ValueTypeName(results[0]))
	} else if len(results) > 1 {
		b.WriteString(" -> (")
		for i, r := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(api.ValueTypeName(r))
		}
		b.WriteByte(')')
	}
	return b.String()
}

func pages(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}
