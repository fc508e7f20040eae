package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

const testConfig = `{
	"components": [
		{"name": "base1", "type": "base", "model": "fake"},
		{"name": "imu", "type": "movement_sensor", "model": "fake", "attributes": {"base": "base1"}},
		{"name": "bumper", "type": "hazard_sensor", "model": "fake", "attributes": {"kind": "bumper", "mean_interval_sec": 0.05, "seed": 1}}
	],
	"services": [
		{"name": "wanderer", "type": "wander", "attributes": {
			"base": "base1", "movement_sensor": "imu", "bumper": "bumper",
			"control_rate_hz": 200, "retreat_ticks": 5, "random_seed": 7
		}}
	]
}`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "wander.json")
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
	return path
}

func TestRunForDuration(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, testConfig)
	logPath := filepath.Join(dir, "wander.log")

	err := newApp().Run([]string{"wander", "run", "-c", configPath, "--debug", "--log-file", logPath, "--duration", "300ms"})
	test.That(t, err, test.ShouldBeNil)

	logged, err := os.ReadFile(logPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logged), test.ShouldContainSubstring, "wandering stopped")
	test.That(t, string(logged), test.ShouldContainSubstring, "shutting down")
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()

	err := newApp().Run([]string{"wander", "run"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "config")

	err = newApp().Run([]string{"wander", "run", "-c", filepath.Join(dir, "missing.json"), "--duration", "10ms"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error reading config")

	badPath := writeConfig(t, dir, `{"services": [{"name": "w", "type": "wander", "attributes": {"base": "b"}}]}`)
	err = newApp().Run([]string{"wander", "run", "-c", badPath, "--duration", "10ms"})
	test.That(t, err, test.ShouldNotBeNil)
}
