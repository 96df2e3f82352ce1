package pluginsystem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunihir0/gini-sub000/pluginsystem"
)

func TestParsePriorityAcceptsBothSpellings(t *testing.T) {
	p1, err := pluginsystem.ParsePriority("core_critical:30")
	require.NoError(t, err)
	p2, err := pluginsystem.ParsePriority("corecritical:30")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, "core_critical:30", p1.String())
}

func TestParsePriorityRejectsOutOfBandValue(t *testing.T) {
	_, err := pluginsystem.ParsePriority("kernel:11")
	require.Error(t, err)
}

func TestPriorityOrderingIsBandThenValue(t *testing.T) {
	kernel := pluginsystem.Priority{Band: pluginsystem.BandKernel, Value: 10}
	core := pluginsystem.Priority{Band: pluginsystem.BandCore, Value: 1}
	assert.True(t, kernel.Less(core))

	coreLow := pluginsystem.Priority{Band: pluginsystem.BandCore, Value: 10}
	coreHigh := pluginsystem.Priority{Band: pluginsystem.BandCore, Value: 90}
	assert.True(t, coreLow.Less(coreHigh))
}
