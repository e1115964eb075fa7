package declwire

import (
	"errors"
)

// Component manager errors
var (
	// Descriptor resolution errors
	ErrDescriptorNotFound = errors.New("component descriptor not found")

	// Descriptor parse errors
	ErrDescriptorParse         = errors.New("descriptor parse error")
	ErrUnknownEntryKind        = errors.New("unknown descriptor entry kind")
	ErrMalformedEntry          = errors.New("malformed descriptor entry")
	ErrMalformedAttribute      = errors.New("malformed descriptor attribute")
	ErrMissingAttribute        = errors.New("missing required descriptor attribute")
	ErrInvalidIntAttribute     = errors.New("descriptor attribute is not an integer")
	ErrNoEntryParsed           = errors.New("no descriptor entry parsed yet")
	ErrDependencyBeforeService = errors.New("service not declared in the first descriptor entry")
	ErrDuplicateServiceEntry   = errors.New("descriptor declares more than one service entry")
	ErrEmptyDescriptor         = errors.New("descriptor contains no service entry")

	// Component construction errors
	ErrComponentConstruction = errors.New("component construction failed")
	ErrTemporalDefaultImpl   = errors.New("defaultImpl is not supported on temporal service dependencies")
	ErrNegativeTimeout       = errors.New("temporal dependency timeout must not be negative")

	// Component lifecycle errors
	ErrComponentStop  = errors.New("component stop failed")
	ErrManagerStopped = errors.New("component manager is stopped")

	// Event emission errors
	ErrNoSubjectForEventEmission = errors.New("no subject available for event emission")

	// Configuration errors
	ErrUnsupportedConfigFormat = errors.New("unsupported config file format")
	ErrConfigNotStructPointer  = errors.New("config must be a non-nil pointer to a struct")
	ErrDefaultValueParse       = errors.New("failed to parse default value")
)
