package declwire

import (
	"fmt"
	"time"
)

// parseFlag implements the descriptor boolean policy: a flag is true iff its
// value is exactly the literal "true". Case variants and numeric forms are
// false. This matches the wire format, it is not a general boolean parse.
func parseFlag(value string) bool {
	return value == "true"
}

// verifyType checks at descriptor-build time that the module can resolve an
// implementation identifier, so an unresolvable type aborts the descriptor
// instead of surfacing later inside the runtime.
func verifyType(mod Module, name string) error {
	if _, err := mod.LoadType(name); err != nil {
		return fmt.Errorf("%w: %v", ErrComponentConstruction, err)
	}
	return nil
}

// buildComponent constructs the component configuration for a service-family
// entry that the parser just parsed.
func buildComponent(kind EntryKind, mod Module, p *DescriptorParser) (ComponentConfig, error) {
	switch kind {
	case KindService:
		return buildService(mod, p)
	case KindAspectService:
		return buildAspectService(mod, p)
	case KindAdapterService:
		return buildAdapterService(mod, p)
	case KindBundleAdapterService:
		return buildModuleAdapterService(mod, p)
	case KindResourceAdapterService:
		return buildResourceAdapterService(mod, p)
	case KindFactoryConfigurationAdapterService:
		return buildFactoryConfigAdapterService(mod, p)
	default:
		return ComponentConfig{}, fmt.Errorf("%w: %s is not a service entry", ErrDescriptorParse, kind)
	}
}

// buildDependency constructs the dependency configuration for a dependency
// entry that the parser just parsed.
func buildDependency(kind EntryKind, mod Module, p *DescriptorParser) (DependencyConfig, error) {
	switch kind {
	case KindServiceDependency:
		return buildServiceDependency(mod, p, false)
	case KindTemporalServiceDependency:
		return buildServiceDependency(mod, p, true)
	case KindConfigurationDependency:
		return buildConfigurationDependency(p)
	case KindBundleDependency:
		return buildModuleDependency(p)
	case KindResourceDependency:
		return buildResourceDependency(p)
	default:
		return DependencyConfig{}, fmt.Errorf("%w: %s is not a dependency entry", ErrDescriptorParse, kind)
	}
}

// applyImplementation resolves the impl/factory attributes shared by most
// service kinds: without a factory attribute the impl type is the
// implementation, otherwise the factory type's factoryMethod (default
// "create") produces the instance.
func applyImplementation(cfg *ComponentConfig, mod Module, p *DescriptorParser) error {
	cfg.Factory = p.StringOr(attrFactory, "")
	cfg.FactoryMethod = p.StringOr(attrFactoryMethod, "create")

	if cfg.Factory == "" {
		impl, err := p.String(attrImpl)
		if err != nil {
			return err
		}
		if err := verifyType(mod, impl); err != nil {
			return err
		}
		cfg.Impl = impl
		return nil
	}
	return verifyType(mod, cfg.Factory)
}

// applyCommon sets the lifecycle callback names and the composition accessor
// shared by every service kind.
func applyCommon(cfg *ComponentConfig, p *DescriptorParser) {
	cfg.Callbacks = Callbacks{
		Init:    p.StringOr(attrInit, ""),
		Start:   p.StringOr(attrStart, ""),
		Stop:    p.StringOr(attrStop, ""),
		Destroy: p.StringOr(attrDestroy, ""),
	}
	cfg.Composition = p.StringOr(attrComposition, "")
}

func buildService(mod Module, p *DescriptorParser) (ComponentConfig, error) {
	cfg := ComponentConfig{Kind: KindService}
	if err := applyImplementation(&cfg, mod, p); err != nil {
		return ComponentConfig{}, err
	}
	applyCommon(&cfg, p)

	// Provided interfaces carry the properties dictionary; a component
	// without a provide attribute registers nothing.
	if provides := p.StringsOr(attrProvide, nil); provides != nil {
		props, err := p.DictionaryOr(attrProperties, nil)
		if err != nil {
			return ComponentConfig{}, err
		}
		cfg.Provides = provides
		cfg.Properties = props
	}
	return cfg, nil
}

func buildAspectService(mod Module, p *DescriptorParser) (ComponentConfig, error) {
	cfg := ComponentConfig{Kind: KindAspectService}

	service, err := p.String(attrService)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.Service = service
	cfg.Filter = p.StringOr(attrFilter, "")

	ranking, err := p.IntOr(attrRanking, 1)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.Ranking = ranking

	if err := applyImplementation(&cfg, mod, p); err != nil {
		return ComponentConfig{}, err
	}
	props, err := p.DictionaryOr(attrProperties, nil)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.Properties = props
	applyCommon(&cfg, p)
	return cfg, nil
}

func buildAdapterService(mod Module, p *DescriptorParser) (ComponentConfig, error) {
	cfg := ComponentConfig{Kind: KindAdapterService}

	impl, err := p.String(attrImpl)
	if err != nil {
		return ComponentConfig{}, err
	}
	if err := verifyType(mod, impl); err != nil {
		return ComponentConfig{}, err
	}
	cfg.Impl = impl

	adaptee, err := p.String(attrAdapteeService)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.AdapteeService = adaptee
	cfg.AdapteeFilter = p.StringOr(attrAdapteeFilter, "")
	cfg.AdapterServices = p.StringsOr(attrAdapterService, nil)

	props, err := p.DictionaryOr(attrAdapterProperties, nil)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.AdapterProperties = props
	applyCommon(&cfg, p)
	return cfg, nil
}

func buildModuleAdapterService(mod Module, p *DescriptorParser) (ComponentConfig, error) {
	cfg := ComponentConfig{Kind: KindBundleAdapterService}

	mask, err := p.IntOr(attrStateMask, DefaultStateMask)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.StateMask = mask
	cfg.Filter = p.StringOr(attrFilter, "")

	impl, err := p.String(attrImpl)
	if err != nil {
		return ComponentConfig{}, err
	}
	if err := verifyType(mod, impl); err != nil {
		return ComponentConfig{}, err
	}
	cfg.Impl = impl

	cfg.Service = p.StringOr(attrService, "")
	props, err := p.DictionaryOr(attrProperties, nil)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.Properties = props
	cfg.Propagate = parseFlag(p.StringOr(attrPropagate, "false"))
	applyCommon(&cfg, p)
	return cfg, nil
}

func buildResourceAdapterService(mod Module, p *DescriptorParser) (ComponentConfig, error) {
	cfg := ComponentConfig{Kind: KindResourceAdapterService}

	cfg.Filter = p.StringOr(attrFilter, "")

	impl, err := p.String(attrImpl)
	if err != nil {
		return ComponentConfig{}, err
	}
	if err := verifyType(mod, impl); err != nil {
		return ComponentConfig{}, err
	}
	cfg.Impl = impl

	cfg.Service = p.StringOr(attrService, "")
	props, err := p.DictionaryOr(attrProperties, nil)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.Properties = props
	cfg.Propagate = parseFlag(p.StringOr(attrPropagate, "false"))
	applyCommon(&cfg, p)
	return cfg, nil
}

func buildFactoryConfigAdapterService(mod Module, p *DescriptorParser) (ComponentConfig, error) {
	cfg := ComponentConfig{Kind: KindFactoryConfigurationAdapterService}

	impl, err := p.String(attrImpl)
	if err != nil {
		return ComponentConfig{}, err
	}
	if err := verifyType(mod, impl); err != nil {
		return ComponentConfig{}, err
	}
	cfg.Impl = impl

	factoryPID, err := p.String(attrFactoryPid)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.FactoryPID = factoryPID

	updated, err := p.String(attrUpdated)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.Updated = updated

	cfg.Provides = p.StringsOr(attrService, nil)
	props, err := p.DictionaryOr(attrProperties, nil)
	if err != nil {
		return ComponentConfig{}, err
	}
	cfg.Properties = props
	cfg.Propagate = parseFlag(p.StringOr(attrPropagate, "false"))
	applyCommon(&cfg, p)
	return cfg, nil
}

func buildServiceDependency(mod Module, p *DescriptorParser, temporal bool) (DependencyConfig, error) {
	dep := DependencyConfig{Kind: KindServiceDependency, StateMask: StateMaskUnset}
	if temporal {
		dep.Kind = KindTemporalServiceDependency
	}

	service, err := p.String(attrService)
	if err != nil {
		return DependencyConfig{}, err
	}
	dep.Service = service
	dep.Filter = p.StringOr(attrFilter, "")

	if defaultImpl := p.StringOr(attrDefaultImpl, ""); defaultImpl != "" {
		if temporal {
			return DependencyConfig{}, fmt.Errorf("%w: %s", ErrTemporalDefaultImpl, service)
		}
		if err := verifyType(mod, defaultImpl); err != nil {
			return DependencyConfig{}, err
		}
		dep.DefaultImpl = defaultImpl
	}

	// Temporal dependencies only support the added callback; changed and
	// removed are forced absent.
	dep.Added = p.StringOr(attrAdded, "")
	if !temporal {
		dep.Changed = p.StringOr(attrChanged, "")
		dep.Removed = p.StringOr(attrRemoved, "")
	}

	dep.AutoConfig = p.StringOr(attrAutoConfig, "")

	if temporal {
		timeout, err := p.IntOr(attrTimeout, 0)
		if err != nil {
			return DependencyConfig{}, err
		}
		if timeout < 0 {
			return DependencyConfig{}, fmt.Errorf("%w: timeout=%d", ErrNegativeTimeout, timeout)
		}
		dep.Timeout = time.Duration(timeout) * time.Millisecond
		// A temporal dependency is always required, whatever the entry says.
		dep.Required = true
	} else {
		dep.Required = parseFlag(p.StringOr(attrRequired, "true"))
	}
	return dep, nil
}

func buildConfigurationDependency(p *DescriptorParser) (DependencyConfig, error) {
	dep := DependencyConfig{Kind: KindConfigurationDependency, StateMask: StateMaskUnset, Required: true}

	pid, err := p.String(attrPid)
	if err != nil {
		return DependencyConfig{}, err
	}
	dep.PID = pid
	dep.Propagate = parseFlag(p.StringOr(attrPropagate, "false"))
	dep.Updated = p.StringOr(attrUpdated, "updated")
	return dep, nil
}

func buildModuleDependency(p *DescriptorParser) (DependencyConfig, error) {
	dep := DependencyConfig{Kind: KindBundleDependency}

	dep.Added = p.StringOr(attrAdded, "")
	dep.Changed = p.StringOr(attrChanged, "")
	dep.Removed = p.StringOr(attrRemoved, "")
	dep.Required = parseFlag(p.StringOr(attrRequired, "true"))
	dep.Filter = p.StringOr(attrFilter, "")

	mask, err := p.IntOr(attrStateMask, StateMaskUnset)
	if err != nil {
		return DependencyConfig{}, err
	}
	dep.StateMask = mask
	dep.Propagate = parseFlag(p.StringOr(attrPropagate, "false"))
	return dep, nil
}

func buildResourceDependency(p *DescriptorParser) (DependencyConfig, error) {
	dep := DependencyConfig{Kind: KindResourceDependency, StateMask: StateMaskUnset}

	dep.Added = p.StringOr(attrAdded, "")
	dep.Changed = p.StringOr(attrChanged, "")
	dep.Removed = p.StringOr(attrRemoved, "")
	dep.Required = parseFlag(p.StringOr(attrRequired, "true"))
	dep.Filter = p.StringOr(attrFilter, "")
	dep.Propagate = parseFlag(p.StringOr(attrPropagate, "false"))
	return dep, nil
}
