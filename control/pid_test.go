package control

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestPIDProportional(t *testing.T) {
	pid, err := NewPID(PIDConfig{Kp: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pid.Next(1.5, 100*time.Millisecond), test.ShouldAlmostEqual, 3.0)
	test.That(t, pid.Next(-1, 100*time.Millisecond), test.ShouldAlmostEqual, -2.0)
	test.That(t, pid.Next(1, 0), test.ShouldEqual, 0.0)
}

func TestPIDIntegralAndDerivative(t *testing.T) {
	dt := 100 * time.Millisecond
	pid, err := NewPID(PIDConfig{Ki: 1, IntegralLimit: 0.15})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pid.Next(1, dt), test.ShouldAlmostEqual, 0.1)
	test.That(t, pid.Next(1, dt), test.ShouldAlmostEqual, 0.15)
	test.That(t, pid.Next(1, dt), test.ShouldAlmostEqual, 0.15)
	pid.Reset()
	test.That(t, pid.Next(-1, dt), test.ShouldAlmostEqual, -0.1)

	pid, err = NewPID(PIDConfig{Kd: 1, OutputLimit: 5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pid.Next(0.2, dt), test.ShouldAlmostEqual, 2.0)
	test.That(t, pid.Next(0.2, dt), test.ShouldAlmostEqual, 0.0)
	test.That(t, pid.Next(-1, dt), test.ShouldAlmostEqual, -5.0)
}

func TestPIDConfigValidate(t *testing.T) {
	_, err := NewPID(PIDConfig{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "at least one of kp, ki or kd")

	_, err = NewPID(PIDConfig{Kp: 1, OutputLimit: -1})
	test.That(t, err, test.ShouldNotBeNil)
}
