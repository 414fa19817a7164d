package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcouple/coupler/couplingerrors"
)

const validDoc = `<?xml version="1.0"?>
<solver-interface dimensions="2" experimental="false">
  <data:scalar name="Pressure"/>
  <data:vector name="Displacement"/>
  <mesh name="FluidMesh">
    <use-data name="Pressure"/>
  </mesh>
  <mesh name="SolidMesh">
    <use-data name="Displacement"/>
  </mesh>
  <participant name="Fluid">
    <provide-mesh name="FluidMesh"/>
    <receive-mesh name="SolidMesh" from="Solid"/>
    <write-data name="Pressure" mesh="FluidMesh"/>
    <read-data name="Displacement" mesh="SolidMesh"/>
  </participant>
  <participant name="Solid">
    <provide-mesh name="SolidMesh"/>
    <receive-mesh name="FluidMesh" from="Fluid"/>
    <write-data name="Displacement" mesh="SolidMesh"/>
    <read-data name="Pressure" mesh="FluidMesh"/>
  </participant>
  <m2n:sockets from="Fluid" to="Solid"/>
  <coupling-scheme:serial-implicit>
    <max-time value="1.0"/>
    <time-window-size value="0.1" method="fixed"/>
    <participants first="Fluid" second="Solid"/>
    <exchange data="Pressure" mesh="FluidMesh" from="Fluid" to="Solid" initialize="false"/>
    <exchange data="Displacement" mesh="SolidMesh" from="Solid" to="Fluid" initialize="true"/>
    <max-iterations value="50"/>
    <convergence-measure data="Displacement" mesh="SolidMesh" limit="1e-6" suffices="false" strict="true"/>
    <acceleration:constant relaxation="0.5"/>
  </coupling-scheme:serial-implicit>
</solver-interface>`

func TestParseValidDocument(t *testing.T) {
	cfg, err := Parse(strings.NewReader(validDoc))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Dimensions)
	require.Len(t, cfg.Data, 2)
	assert.Equal(t, "Pressure", cfg.Data[0].Name)
	assert.Equal(t, "scalar", cfg.Data[0].Kind)
	assert.Equal(t, "vector", cfg.Data[1].Kind)

	require.Len(t, cfg.Meshes, 2)
	require.Len(t, cfg.Participants, 2)
	require.Len(t, cfg.M2Ns, 1)
	assert.Equal(t, "sockets", cfg.M2Ns[0].Kind)

	require.NotNil(t, cfg.CouplingScheme)
	assert.Equal(t, "serial-implicit", cfg.CouplingScheme.Kind)
	assert.Equal(t, "Fluid", cfg.CouplingScheme.FirstParticipant)
	assert.Equal(t, "Solid", cfg.CouplingScheme.SecondParticipant)
	require.Len(t, cfg.CouplingScheme.Exchanges, 2)
	require.Len(t, cfg.CouplingScheme.ConvergenceMeasures, 1)
	require.NotNil(t, cfg.CouplingScheme.Acceleration)
	assert.Equal(t, "constant", cfg.CouplingScheme.Acceleration.Kind)
	assert.InDelta(t, 0.5, cfg.CouplingScheme.Acceleration.RelaxationFactor, 1e-9)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadDimensions(t *testing.T) {
	cfg, err := Parse(strings.NewReader(strings.Replace(validDoc, `dimensions="2"`, `dimensions="4"`, 1)))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, couplingerrors.Is(err, couplingerrors.ConfigurationError))
}

func TestValidateRejectsUndeclaredDataReference(t *testing.T) {
	doc := strings.Replace(validDoc, `<use-data name="Pressure"/>`, `<use-data name="Temperature"/>`, 1)
	cfg, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, couplingerrors.Is(err, couplingerrors.ConfigurationError))
	assert.Contains(t, err.Error(), "Temperature")
}

func TestValidateRejectsFirstParticipantWithWaveformOrder(t *testing.T) {
	doc := strings.Replace(validDoc, `method="fixed"`, `method="first-participant"`, 1)
	doc = strings.Replace(doc, "<max-iterations", `<extrapolation-order value="1"/>
    <max-iterations`, 1)
	cfg, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first-participant")
}

func TestValidateRejectsImplicitSchemeWithoutConvergenceMeasure(t *testing.T) {
	doc := strings.Replace(validDoc,
		`<convergence-measure data="Displacement" mesh="SolidMesh" limit="1e-6" suffices="false" strict="true"/>`,
		"", 1)
	cfg, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "convergence-measure")
}
