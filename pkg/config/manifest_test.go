package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleManifest = `
apiVersion: estore/v1
kind: IndexBuildJob
metadata:
  name: backfill-orders-by-customer
  labels:
    team: payments
spec:
  entityType: order
  indexes:
    - by-customer
    - by-status
  batchSize: 250
  clearFirst: true
`

func TestParseManifestResolvesIndexBuildJob(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)
	assert.Equal(t, "estore/v1", m.APIVersion)
	assert.Equal(t, KindIndexBuildJob, m.Kind)
	assert.Equal(t, "backfill-orders-by-customer", m.Metadata.Name)
	assert.Equal(t, "payments", m.Metadata.Labels["team"])

	job, err := m.BuildJob()
	require.NoError(t, err)
	assert.Equal(t, "order", job.EntityType)
	assert.Equal(t, []string{"by-customer", "by-status"}, job.Indexes)
	assert.Equal(t, 250, job.BatchSize)
	assert.True(t, job.ClearFirst)
}

func TestParseManifestRejectsMissingKind(t *testing.T) {
	_, err := ParseManifest([]byte("apiVersion: estore/v1\nmetadata:\n  name: x\n"))
	assert.Error(t, err)
}

func TestBuildJobRejectsWrongKind(t *testing.T) {
	m := &Manifest{Kind: "Something", Metadata: ManifestMetadata{Name: "x"}}
	_, err := m.BuildJob()
	assert.Error(t, err)
}

func TestBuildJobRequiresEntityTypeAndIndexes(t *testing.T) {
	m := &Manifest{
		Kind:     KindIndexBuildJob,
		Metadata: ManifestMetadata{Name: "x"},
		Spec:     map[string]interface{}{},
	}
	_, err := m.BuildJob()
	assert.Error(t, err)

	m.Spec["entityType"] = "order"
	_, err = m.BuildJob()
	assert.Error(t, err, "still missing indexes")
}

func TestManifestRoundTripsThroughYAML(t *testing.T) {
	original := &Manifest{
		APIVersion: "estore/v1",
		Kind:       KindIndexBuildJob,
		Metadata:   ManifestMetadata{Name: "rebuild-widgets", Labels: map[string]string{"owner": "catalog"}},
		Spec: map[string]interface{}{
			"entityType": "widget",
			"indexes":    []interface{}{"by-name"},
			"batchSize":  100,
			"clearFirst": false,
		},
	}

	data, err := yaml.Marshal(original)
	require.NoError(t, err)

	var roundTripped Manifest
	require.NoError(t, yaml.Unmarshal(data, &roundTripped))
	assert.Equal(t, original, &roundTripped)
}
