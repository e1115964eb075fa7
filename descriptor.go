package declwire

import (
	"fmt"
	"strconv"
	"strings"
)

// EntryKind identifies one declarative statement kind in a component
// descriptor. A descriptor declares exactly one service-family entry
// followed by zero or more dependency entries.
type EntryKind int

const (
	KindUnknown EntryKind = iota

	// Service-family entries. Exactly one of these must open a descriptor.
	KindService
	KindAspectService
	KindAdapterService
	KindBundleAdapterService
	KindResourceAdapterService
	KindFactoryConfigurationAdapterService

	// Dependency entries, attached to the preceding service entry.
	KindServiceDependency
	KindTemporalServiceDependency
	KindConfigurationDependency
	KindBundleDependency
	KindResourceDependency
)

// entryKindNames holds the on-the-wire entry names. These are part of the
// descriptor file format and must not change.
var entryKindNames = map[string]EntryKind{
	"Service":                            KindService,
	"AspectService":                      KindAspectService,
	"AdapterService":                     KindAdapterService,
	"BundleAdapterService":               KindBundleAdapterService,
	"ResourceAdapterService":             KindResourceAdapterService,
	"FactoryConfigurationAdapterService": KindFactoryConfigurationAdapterService,
	"ServiceDependency":                  KindServiceDependency,
	"TemporalServiceDependency":          KindTemporalServiceDependency,
	"ConfigurationDependency":            KindConfigurationDependency,
	"BundleDependency":                   KindBundleDependency,
	"ResourceDependency":                 KindResourceDependency,
}

// String returns the wire name of the entry kind.
func (k EntryKind) String() string {
	for name, kind := range entryKindNames {
		if kind == k {
			return name
		}
	}
	return "Unknown"
}

// IsService reports whether the kind belongs to the service family, i.e.
// whether it declares a component rather than a dependency.
func (k EntryKind) IsService() bool {
	return k >= KindService && k <= KindFactoryConfigurationAdapterService
}

// Descriptor attribute names. Like the entry kind names, these are part of
// the wire format.
const (
	attrImpl              = "impl"
	attrFactory           = "factory"
	attrFactoryMethod     = "factoryMethod"
	attrInit              = "init"
	attrStart             = "start"
	attrStop              = "stop"
	attrDestroy           = "destroy"
	attrComposition       = "composition"
	attrProvide           = "provide"
	attrProperties        = "properties"
	attrService           = "service"
	attrFilter            = "filter"
	attrRanking           = "ranking"
	attrAdapteeService    = "adapteeService"
	attrAdapteeFilter     = "adapteeFilter"
	attrAdapterService    = "adapterService"
	attrAdapterProperties = "adapterProperties"
	attrStateMask         = "stateMask"
	attrPropagate         = "propagate"
	attrFactoryPid        = "factoryPid"
	attrUpdated           = "updated"
	attrDefaultImpl       = "defaultImpl"
	attrAdded             = "added"
	attrChanged           = "changed"
	attrRemoved           = "removed"
	attrAutoConfig        = "autoConfig"
	attrRequired          = "required"
	attrTimeout           = "timeout"
	attrPid               = "pid"
)

// DescriptorParser parses component descriptor entries one line at a time.
// Parsing is stateful: each successful Parse call replaces the current
// attribute set, and the typed accessors read from that set until the next
// line is parsed.
//
// An entry line has the form
//
//	Kind(key=value, key=value, ...)
//
// Multi-valued attributes list their values comma-separated; a comma token
// without '=' continues the previous attribute's value list:
//
//	Service(impl=greeter.Impl, provide=greeter.Hello,greeter.Goodbye)
type DescriptorParser struct {
	logger Logger
	kind   EntryKind
	attrs  map[string]string
}

// NewDescriptorParser creates a parser. The logger receives per-line debug
// output only; parse failures are returned, not logged here.
func NewDescriptorParser(logger Logger) *DescriptorParser {
	return &DescriptorParser{logger: logger}
}

// Parse parses one descriptor line and makes its attributes current.
func (p *DescriptorParser) Parse(line string) (EntryKind, error) {
	line = strings.TrimSpace(line)

	open := strings.IndexByte(line, '(')
	if open < 0 || !strings.HasSuffix(line, ")") {
		return KindUnknown, fmt.Errorf("%w: %q", ErrMalformedEntry, line)
	}

	kindName := strings.TrimSpace(line[:open])
	kind, known := entryKindNames[kindName]
	if !known {
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownEntryKind, kindName)
	}

	attrs := make(map[string]string)
	body := line[open+1 : len(line)-1]
	lastKey := ""
	for _, token := range strings.Split(body, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if key, value, found := strings.Cut(token, "="); found {
			key = strings.TrimSpace(key)
			if key == "" {
				return KindUnknown, fmt.Errorf("%w: %q", ErrMalformedAttribute, token)
			}
			attrs[key] = strings.TrimSpace(value)
			lastKey = key
			continue
		}
		// No '=': the token continues the previous attribute's value list.
		if lastKey == "" {
			return KindUnknown, fmt.Errorf("%w: %q", ErrMalformedAttribute, token)
		}
		attrs[lastKey] = attrs[lastKey] + "," + token
	}

	p.kind = kind
	p.attrs = attrs
	p.logger.Debug("Parsed descriptor entry", "kind", kindName, "attributes", len(attrs))
	return kind, nil
}

// Kind returns the kind of the most recently parsed entry.
func (p *DescriptorParser) Kind() EntryKind {
	return p.kind
}

// String returns a required attribute of the current entry. Absence is a
// missing-attribute error.
func (p *DescriptorParser) String(key string) (string, error) {
	if p.attrs == nil {
		return "", ErrNoEntryParsed
	}
	value, exists := p.attrs[key]
	if !exists {
		return "", fmt.Errorf("%w: %s in %s entry", ErrMissingAttribute, key, p.kind)
	}
	return value, nil
}

// StringOr returns an optional attribute, or def when absent.
func (p *DescriptorParser) StringOr(key, def string) string {
	if value, exists := p.attrs[key]; exists {
		return value
	}
	return def
}

// StringsOr returns an optional multi-valued attribute split on commas, or
// def when absent. Empty list elements are dropped.
func (p *DescriptorParser) StringsOr(key string, def []string) []string {
	value, exists := p.attrs[key]
	if !exists {
		return def
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IntOr returns an optional integer attribute, or def when absent. A value
// that is present but not an integer is an error.
func (p *DescriptorParser) IntOr(key string, def int) (int, error) {
	value, exists := p.attrs[key]
	if !exists {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidIntAttribute, key, value)
	}
	return n, nil
}

// DictionaryOr returns an optional dictionary attribute, or def when absent.
// Dictionary values are comma-separated key:value pairs:
//
//	properties=lang:en,region:us
func (p *DescriptorParser) DictionaryOr(key string, def map[string]string) (map[string]string, error) {
	value, exists := p.attrs[key]
	if !exists {
		return def, nil
	}
	dict := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, found := strings.Cut(pair, ":")
		if !found || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: %s entry %q", ErrMalformedAttribute, key, pair)
		}
		dict[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return dict, nil
}
