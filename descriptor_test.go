package declwire

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseServiceEntry(t *testing.T) {
	p := NewDescriptorParser(testLogger{})

	kind, err := p.Parse("Service(impl=greeter.Impl, provide=greeter.Hello)")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if kind != KindService {
		t.Fatalf("Expected KindService, got %v", kind)
	}

	impl, err := p.String("impl")
	if err != nil {
		t.Fatalf("String(impl) failed: %v", err)
	}
	if impl != "greeter.Impl" {
		t.Errorf("Expected impl greeter.Impl, got %q", impl)
	}
}

func TestParseEveryEntryKind(t *testing.T) {
	lines := map[string]EntryKind{
		"Service(impl=a)":                            KindService,
		"AspectService(service=s, impl=a)":           KindAspectService,
		"AdapterService(impl=a, adapteeService=s)":   KindAdapterService,
		"BundleAdapterService(impl=a)":               KindBundleAdapterService,
		"ResourceAdapterService(impl=a)":             KindResourceAdapterService,
		"FactoryConfigurationAdapterService(impl=a)": KindFactoryConfigurationAdapterService,
		"ServiceDependency(service=s)":               KindServiceDependency,
		"TemporalServiceDependency(service=s)":       KindTemporalServiceDependency,
		"ConfigurationDependency(pid=p)":             KindConfigurationDependency,
		"BundleDependency(filter=f)":                 KindBundleDependency,
		"ResourceDependency(filter=f)":               KindResourceDependency,
	}

	for line, expected := range lines {
		p := NewDescriptorParser(testLogger{})
		kind, err := p.Parse(line)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", line, err)
			continue
		}
		if kind != expected {
			t.Errorf("Parse(%q) = %v, expected %v", line, kind, expected)
		}
	}
}

func TestParseMultiValueContinuation(t *testing.T) {
	p := NewDescriptorParser(testLogger{})

	// The second comma-separated token has no '=' and extends the provide
	// attribute's value list.
	if _, err := p.Parse("Service(impl=a.B, provide=x.One,x.Two,x.Three)"); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	provides := p.StringsOr("provide", nil)
	expected := []string{"x.One", "x.Two", "x.Three"}
	if !reflect.DeepEqual(provides, expected) {
		t.Errorf("Expected provides %v, got %v", expected, provides)
	}
}

func TestParseMalformedEntries(t *testing.T) {
	cases := []struct {
		line string
		want error
	}{
		{"Service", ErrMalformedEntry},
		{"Service(impl=a", ErrMalformedEntry},
		{"impl=a)", ErrMalformedEntry},
		{"WidgetService(impl=a)", ErrUnknownEntryKind},
		{"Service(=value)", ErrMalformedAttribute},
		{"Service(noequals)", ErrMalformedAttribute},
	}

	for _, tc := range cases {
		p := NewDescriptorParser(testLogger{})
		if _, err := p.Parse(tc.line); !errors.Is(err, tc.want) {
			t.Errorf("Parse(%q) error = %v, expected %v", tc.line, err, tc.want)
		}
	}
}

func TestStringRequiresAttribute(t *testing.T) {
	p := NewDescriptorParser(testLogger{})
	if _, err := p.Parse("Service(impl=a.B)"); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if _, err := p.String("factory"); !errors.Is(err, ErrMissingAttribute) {
		t.Errorf("Expected ErrMissingAttribute, got %v", err)
	}
}

func TestStringBeforeParse(t *testing.T) {
	p := NewDescriptorParser(testLogger{})
	if _, err := p.String("impl"); !errors.Is(err, ErrNoEntryParsed) {
		t.Errorf("Expected ErrNoEntryParsed, got %v", err)
	}
}

func TestIntOr(t *testing.T) {
	p := NewDescriptorParser(testLogger{})
	if _, err := p.Parse("AspectService(service=s, impl=a, ranking=10)"); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	ranking, err := p.IntOr("ranking", 1)
	if err != nil {
		t.Fatalf("IntOr failed: %v", err)
	}
	if ranking != 10 {
		t.Errorf("Expected ranking 10, got %d", ranking)
	}

	if missing, err := p.IntOr("stateMask", -1); err != nil || missing != -1 {
		t.Errorf("Expected default -1, got %d (err %v)", missing, err)
	}
}

func TestIntOrRejectsNonInteger(t *testing.T) {
	p := NewDescriptorParser(testLogger{})
	if _, err := p.Parse("AspectService(service=s, impl=a, ranking=high)"); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if _, err := p.IntOr("ranking", 1); !errors.Is(err, ErrInvalidIntAttribute) {
		t.Errorf("Expected ErrInvalidIntAttribute, got %v", err)
	}
}

func TestDictionaryOr(t *testing.T) {
	p := NewDescriptorParser(testLogger{})
	if _, err := p.Parse("Service(impl=a, provide=x, properties=lang:en,region:us)"); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	props, err := p.DictionaryOr("properties", nil)
	if err != nil {
		t.Fatalf("DictionaryOr failed: %v", err)
	}
	expected := map[string]string{"lang": "en", "region": "us"}
	if !reflect.DeepEqual(props, expected) {
		t.Errorf("Expected %v, got %v", expected, props)
	}
}

func TestDictionaryOrRejectsPairWithoutColon(t *testing.T) {
	p := NewDescriptorParser(testLogger{})
	if _, err := p.Parse("Service(impl=a, provide=x, properties=lang)"); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if _, err := p.DictionaryOr("properties", nil); !errors.Is(err, ErrMalformedAttribute) {
		t.Errorf("Expected ErrMalformedAttribute, got %v", err)
	}
}

func TestIsService(t *testing.T) {
	for kind := KindService; kind <= KindFactoryConfigurationAdapterService; kind++ {
		if !kind.IsService() {
			t.Errorf("%v should be a service kind", kind)
		}
	}
	for kind := KindServiceDependency; kind <= KindResourceDependency; kind++ {
		if kind.IsService() {
			t.Errorf("%v should not be a service kind", kind)
		}
	}
	if KindUnknown.IsService() {
		t.Error("KindUnknown should not be a service kind")
	}
}
