package control

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/uavnav/logging"
)

func TestRegistryLazyCreation(t *testing.T) {
	reg, err := NewRegistry(DefaultConfig(), false, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, ok := reg.Lookup("uav1")
	test.That(t, ok, test.ShouldBeFalse)

	agent, err := reg.LookupOrCreate("uav1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, agent.Name(), test.ShouldEqual, "uav1")

	found, ok := reg.Lookup("uav1")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, found, test.ShouldEqual, agent)
	test.That(t, reg.Register("uav1"), test.ShouldEqual, agent)
}

func TestRegistryStrict(t *testing.T) {
	reg, err := NewRegistry(DefaultConfig(), true, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = reg.LookupOrCreate("intruder")
	var unknown *UnknownAgentError
	test.That(t, errors.As(err, &unknown), test.ShouldBeTrue)
	test.That(t, unknown.Name, test.ShouldEqual, "intruder")

	reg.Register("uav2")
	reg.Register("uav1")
	_, err = reg.LookupOrCreate("uav2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reg.Names(), test.ShouldResemble, []string{"uav1", "uav2"})
}

func TestRegistryConcurrentLookupOrCreate(t *testing.T) {
	reg, err := NewRegistry(DefaultConfig(), false, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	const workers = 16
	got := make([]*AgentState, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agent, err := reg.LookupOrCreate("uav")
			if err == nil {
				got[i] = agent
			}
		}(i)
	}
	wg.Wait()
	for _, agent := range got {
		test.That(t, agent, test.ShouldEqual, got[0])
	}
	test.That(t, reg.Names(), test.ShouldHaveLength, 1)
}

func TestRegistryRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.X = PIDConfig{}
	_, err := NewRegistry(cfg, false, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
