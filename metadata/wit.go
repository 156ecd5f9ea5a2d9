package metadata

import (
	"regexp"
	"strings"

	"github.com/tetratelabs/wazero"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/scripthost/errors"
)

// WITSection is the custom section that carries function signatures.
const WITSection = "wit"

// Param is a named WIT parameter.
type Param struct {
	Type wit.Type
	Name string
}

// Signature is a parsed WIT function declaration.
type Signature struct {
	Name    string
	Text    string
	Params  []Param
	Results []wit.Type
}

// Signatures maps export names to their WIT signatures.
type Signatures map[string]*Signature

var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*(func\s*\(([^)]*)\)(?:\s*->\s*([^;]+))?)`)

// ParseWIT extracts function declarations of the form
// "name: func(a: u32, b: u32) -> u32;" from text.
func ParseWIT(text string) (Signatures, error) {
	sigs := make(Signatures)

	for _, match := range funcPattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		sig := &Signature{
			Name: name,
			Text: strings.TrimSpace(match[2]),
		}

		if params := strings.TrimSpace(match[3]); params != "" {
			for _, p := range splitParams(params) {
				pname, typStr := "", p
				if idx := strings.LastIndex(p, ":"); idx != -1 {
					pname = strings.TrimSpace(p[:idx])
					typStr = strings.TrimSpace(p[idx+1:])
				}
				t, err := parseType(typStr)
				if err != nil {
					return nil, errors.Wrap(errors.PhaseMetadata, errors.KindInvalidImage, err, "parse param type "+typStr)
				}
				sig.Params = append(sig.Params, Param{Name: pname, Type: t})
			}
		}

		result := strings.TrimSpace(match[4])
		if result != "" && result != "()" {
			var parts []string
			if strings.HasPrefix(result, "(") && strings.HasSuffix(result, ")") {
				parts = splitParams(result[1 : len(result)-1])
			} else {
				parts = []string{result}
			}
			for _, part := range parts {
				if idx := strings.LastIndex(part, ":"); idx != -1 {
					part = part[idx+1:]
				}
				t, err := parseType(part)
				if err != nil {
					return nil, errors.Wrap(errors.PhaseMetadata, errors.KindInvalidImage, err, "parse result type "+part)
				}
				sig.Results = append(sig.Results, t)
			}
		}

		sigs[name] = sig
	}

	if len(sigs) == 0 && strings.TrimSpace(text) != "" {
		return nil, errors.New(errors.PhaseMetadata, errors.KindInvalidImage).
			Detail("no function declarations in %s section", WITSection).
			Build()
	}
	return sigs, nil
}

// SignaturesOf parses the WIT section of compiled, if it has one. The runtime
// must be configured to keep custom sections.
func SignaturesOf(compiled wazero.CompiledModule) (Signatures, error) {
	for _, cs := range compiled.CustomSections() {
		if cs.Name() == WITSection {
			return ParseWIT(string(cs.Data()))
		}
	}
	return nil, nil
}

// splitParams splits a parameter list, keeping nested parens and angle
// brackets together.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}
	return result
}

func parseType(s string) (wit.Type, error) {
	return wit.ParseType(strings.TrimSpace(s))
}
