package pluginsystem_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/kunihir0/gini-sub000/pluginsystem"
	"github.com/kunihir0/gini-sub000/pluginsystem/semver"
)

// testPlugin is a hand-rolled fake satisfying pluginsystem.Plugin, used by
// every registry/conflict test in this package. Kept deliberately simple
// rather than reaching for testify/mock: the call-recording needs here
// (initOrder, shutdownCalls) are a handful of fields, not an expectation
// DSL.
type testPlugin struct {
	id           string
	version      string
	isCore       bool
	priority     pluginsystem.Priority
	dependencies []pluginsystem.Dependency
	conflicts    []string
	incompatible []pluginsystem.Dependency
	apiVersions  []semver.Range

	failPreflight bool
	failInit      bool
	failShutdown  bool

	order     *[]string
	orderLock *sync.Mutex
}

func mustRange(s string) semver.Range {
	r, err := semver.ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

func newTestPlugin(id string, priority pluginsystem.Priority, order *[]string, lock *sync.Mutex, deps ...pluginsystem.Dependency) *testPlugin {
	return &testPlugin{
		id: id, version: "1.0.0", priority: priority, dependencies: deps,
		apiVersions: []semver.Range{mustRange("*")},
		order:       order, orderLock: lock,
	}
}

func (p *testPlugin) ID() string                                    { return p.id }
func (p *testPlugin) Name() string                                  { return p.id }
func (p *testPlugin) Version() string                               { return p.version }
func (p *testPlugin) IsCore() bool                                  { return p.isCore }
func (p *testPlugin) Priority() pluginsystem.Priority                { return p.priority }
func (p *testPlugin) CompatibleAPIVersions() []semver.Range          { return p.apiVersions }
func (p *testPlugin) Dependencies() []pluginsystem.Dependency        { return p.dependencies }
func (p *testPlugin) RequiredStages() []pluginsystem.StageRequirement { return nil }
func (p *testPlugin) ConflictsWith() []string                        { return p.conflicts }
func (p *testPlugin) IncompatibleWith() []pluginsystem.Dependency     { return p.incompatible }

func (p *testPlugin) Init(ctx context.Context, app pluginsystem.HostApplication) error {
	if p.failInit {
		return fmt.Errorf("init failed for %s", p.id)
	}
	if p.order != nil {
		p.orderLock.Lock()
		*p.order = append(*p.order, p.id)
		p.orderLock.Unlock()
	}
	return nil
}

func (p *testPlugin) PreflightCheck(ctx context.Context, hctx *pluginsystem.HostContext) error {
	if p.failPreflight {
		return fmt.Errorf("preflight failed for %s", p.id)
	}
	return nil
}

func (p *testPlugin) RegisterStages(ctx context.Context, reg pluginsystem.StageRegisterer) error {
	return nil
}

func (p *testPlugin) Shutdown(ctx context.Context) error {
	if p.order != nil {
		p.orderLock.Lock()
		*p.order = append(*p.order, "shutdown:"+p.id)
		p.orderLock.Unlock()
	}
	if p.failShutdown {
		return fmt.Errorf("shutdown failed for %s", p.id)
	}
	return nil
}

var _ pluginsystem.Plugin = (*testPlugin)(nil)
