package registry

import (
	"regexp"
	"strings"
)

// serviceTypeRegex validates the bare service-type grammar from spec.md
// §6: "_label._tcp" or "_label._udp", case-insensitive.
var serviceTypeRegex = regexp.MustCompile(`(?i)^_[A-Za-z0-9-]+\._(?:tcp|udp)$`)

// subtypeRegex validates an individual subtype label, e.g. "_printer".
var subtypeRegex = regexp.MustCompile(`(?i)^_[A-Za-z0-9-]+$`)

// parseServiceTypeField splits a caller-supplied service-type field
// (which spec.md §6 allows to carry a comma-separated subtype list, e.g.
// "_http._tcp,_printer,_universal") into the bare service type and its
// subtype labels, trimming any stray dots the way the teacher's
// trimDot helper does in kdanielm-zeroconf/utils.go.
func parseServiceTypeField(field string) (serviceType string, subtypes []string) {
	parts := strings.Split(field, ",")
	serviceType = strings.Trim(strings.TrimSpace(parts[0]), ".")
	for _, s := range parts[1:] {
		s = strings.Trim(strings.TrimSpace(s), ".")
		if s != "" {
			subtypes = append(subtypes, s)
		}
	}
	return serviceType, subtypes
}

func validServiceType(serviceType string) bool {
	return serviceTypeRegex.MatchString(serviceType)
}

func validSubtype(subtype string) bool {
	return subtypeRegex.MatchString(subtype)
}

// subtypeSet converts a subtype slice to a deduplicated, order-preserving
// set keyed by its canonical lowercase form.
type subtypeSet struct {
	order []string
	index map[string]string
}

func newSubtypeSet(subtypes []string) *subtypeSet {
	s := &subtypeSet{index: make(map[string]string)}
	for _, st := range subtypes {
		s.add(st)
	}
	return s
}

func (s *subtypeSet) add(subtype string) {
	key := strings.ToLower(subtype)
	if _, ok := s.index[key]; ok {
		return
	}
	s.index[key] = subtype
	s.order = append(s.order, key)
}

func (s *subtypeSet) list() []string {
	out := make([]string, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.index[key])
	}
	return out
}
