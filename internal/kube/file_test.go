package kube

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
)

const manifestDump = `apiVersion: v1
kind: List
items:
- apiVersion: v1
  kind: Pod
  metadata:
    name: checkout-7c9-a
    labels:
      app.kubernetes.io/instance: checkout
  status:
    phase: Pending
    containerStatuses:
    - name: app
      restartCount: 0
      state:
        waiting:
          reason: ImagePullBackOff
- apiVersion: apps/v1
  kind: Deployment
  metadata:
    name: checkout
    labels:
      app.kubernetes.io/instance: checkout
  spec:
    replicas: 1
  status:
    readyReplicas: 0
- apiVersion: v1
  kind: ConfigMap
  metadata:
    name: ignored
---
apiVersion: v1
kind: Event
metadata:
  name: checkout-7c9-a.17a
type: Warning
reason: Failed
message: 'Failed to pull image "checkout:v9": not found'
lastTimestamp: "2024-06-01T10:00:00Z"
involvedObject:
  kind: Pod
  name: checkout-7c9-a
---
{"apiVersion": "v1", "kind": "Pod", "metadata": {"name": "other", "namespace": "elsewhere", "labels": {"app.kubernetes.io/instance": "checkout"}}, "status": {"phase": "Running"}}
`

func TestDecodeObjects(t *testing.T) {
	objs, err := DecodeObjects(strings.NewReader(manifestDump), "shop")
	require.NoError(t, err)
	assert.Len(t, objs, 4)
}

func TestDecodeObjectsMalformed(t *testing.T) {
	_, err := DecodeObjects(strings.NewReader("kind: Pod\nmetadata: [\n"), "shop")
	require.Error(t, err)
}

func TestFileSourceSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifestDump), 0o644))

	snap, err := NewFileSource(quietLogger(), path).Snapshot(context.Background(), models.DetectionContext{Namespace: "shop", Release: "checkout"})
	require.NoError(t, err)

	require.Len(t, snap.Pods, 1)
	assert.Equal(t, "checkout-7c9-a", snap.Pods[0].Name)
	assert.True(t, snap.Pods[0].IsImagePullBackOff())
	require.Len(t, snap.Workloads, 1)
	assert.False(t, snap.Workloads[0].FullyReady())
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "Failed", snap.Events[0].Reason)
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource(nil, filepath.Join(t.TempDir(), "nope.yaml")).Snapshot(context.Background(), models.DetectionContext{Namespace: "shop"})
	require.Error(t, err)
}

const restartedPod = `apiVersion: v1
kind: Pod
metadata:
  name: checkout-7c9-a
  labels:
    app.kubernetes.io/instance: checkout
status:
  phase: Running
  containerStatuses:
  - name: app
    restartCount: 3
    state:
      waiting:
        reason: CrashLoopBackOff
`

func TestFileSourceOverlappingDumps(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.yaml")
	second := filepath.Join(dir, "second.yaml")
	require.NoError(t, os.WriteFile(first, []byte(manifestDump), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(restartedPod+"---\n"+restartedPod), 0o644))

	var snap *models.ClusterSnapshot
	require.NotPanics(t, func() {
		var err error
		snap, err = NewFileSource(quietLogger(), first, first, second).Snapshot(context.Background(), models.DetectionContext{Namespace: "shop", Release: "checkout"})
		require.NoError(t, err)
	})

	require.Len(t, snap.Pods, 1)
	assert.Equal(t, models.PodRunning, snap.Pods[0].Phase, "last copy wins")
	assert.Equal(t, 3, snap.Pods[0].RestartCount)
	assert.Len(t, snap.Workloads, 1)
	assert.Len(t, snap.Events, 1)
}

func TestDedupeObjectsKeysByKind(t *testing.T) {
	objs, err := DecodeObjects(strings.NewReader(`apiVersion: v1
kind: Service
metadata: {name: checkout}
spec: {selector: {app: checkout}}
---
apiVersion: apps/v1
kind: Deployment
metadata: {name: checkout}
`), "shop")
	require.NoError(t, err)
	assert.Len(t, dedupeObjects(objs), 2, "same name under different kinds is not a duplicate")
}
