package main

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestAppDeployWithoutSBTAddress(t *testing.T) {
	t.Setenv(sbtAddressEnv, "")

	app := newApp(testLogger())
	var out bytes.Buffer
	app.Writer = &out

	err := app.Run([]string{"compliant-publish", "deploy"})
	require.ErrorIs(t, err, errSBTAddressUnset)
	require.Empty(t, out.String())
}

func TestAppInvalidLogLevel(t *testing.T) {
	app := newApp(testLogger())
	err := app.Run([]string{"compliant-publish", "--log-level", "loud", "deploy"})
	require.ErrorContains(t, err, "invalid log-level")
}

func TestLogFailureAboveErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.PanicLevel)

	logFailure(logrus.NewEntry(l), errSBTAddressUnset)
	require.Contains(t, buf.String(), "Application failed")
	require.Contains(t, buf.String(), sbtAddressEnv)
}
