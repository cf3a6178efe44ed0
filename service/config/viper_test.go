package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewViperDefaults(t *testing.T) {
	svc, err := NewViper("")
	require.NoError(t, err)

	assert.Equal(t, 5, svc.GetDetectionCooldown())
	assert.Empty(t, svc.GetGates())
	assert.False(t, svc.IsDebug())

	params := svc.GetFilterParameters()
	assert.InDelta(t, 0.5, params.MinClassConfidence, 0.001)
	assert.Equal(t, 3000, params.MinArea)
	assert.InDelta(t, 1.5, params.MinAspectRatio, 0.001)
	assert.InDelta(t, 6.0, params.MaxAspectRatio, 0.001)
	assert.InDelta(t, 0.20, params.CenterZoneFraction, 0.001)
	assert.InDelta(t, 80.0, params.MinBlurScore, 0.001)
	assert.InDelta(t, 0.3, params.MinOcrProbability, 0.001)
	assert.Equal(t, 5, params.MinPlateLength)
	assert.InDelta(t, 2.0, params.UpscaleFactor, 0.001)
}

func TestNewViperFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewatch.yaml")
	content := `
debug: true
detection:
  cooldown: 10
filter:
  minarea: 5000
gates:
  - id: g1
    name: main-gate
    source: "0"
  - id: g2
    name: service-gate
    source: "rtsp://cam2.local/stream"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	svc, err := NewViper(path)
	require.NoError(t, err)

	assert.True(t, svc.IsDebug())
	assert.Equal(t, 10, svc.GetDetectionCooldown())
	assert.Equal(t, 5000, svc.GetFilterParameters().MinArea)
	// Unset keys keep their defaults.
	assert.InDelta(t, 80.0, svc.GetFilterParameters().MinBlurScore, 0.001)

	gates := svc.GetGates()
	require.Len(t, gates, 2)
	assert.Equal(t, "main-gate", gates[0].Name)
	assert.Equal(t, "0", gates[0].Source)
	assert.Equal(t, "rtsp://cam2.local/stream", gates[1].Source)
}

func TestNewViperMissingExplicitFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
