package kube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/StrawberryNinjago/platformtriage/internal/models"
	"github.com/StrawberryNinjago/platformtriage/internal/utils"
)

// FileSource builds snapshots from a manifest dump such as the output of
// `kubectl get pods,deployments,events,services,endpointslices -o yaml`.
// Objects are served from an in-memory clientset so selection matches the
// live path exactly.
type FileSource struct {
	paths  []string
	logger *slog.Logger
}

// NewFileSource reads the given YAML or JSON files on every Snapshot call.
func NewFileSource(logger *slog.Logger, paths ...string) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{paths: paths, logger: logger}
}

// Snapshot decodes the files and selects objects for dctx.
func (s *FileSource) Snapshot(ctx context.Context, dctx models.DetectionContext) (*models.ClusterSnapshot, error) {
	var objects []runtime.Object
	for _, path := range s.paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, utils.NewAppError("snapshot.file", "open manifest", err)
		}
		objs, err := DecodeObjects(f, dctx.Namespace)
		f.Close()
		if err != nil {
			return nil, utils.NewAppError("snapshot.file", path, err)
		}
		objects = append(objects, objs...)
	}
	unique := dedupeObjects(objects)
	s.logger.Debug("manifest objects loaded", slog.Int("objects", len(unique)), slog.Int("duplicates", len(objects)-len(unique)))

	return NewSnapshotBuilder(fake.NewClientset(unique...), 0, s.logger).Snapshot(ctx, dctx)
}

type objectKey struct {
	kind, namespace, name string
}

// dedupeObjects keeps the last occurrence of each (kind, namespace, name),
// so overlapping dumps resolve to the most recently read copy. The result
// preserves first-seen order.
func dedupeObjects(objects []runtime.Object) []runtime.Object {
	index := make(map[objectKey]int, len(objects))
	out := make([]runtime.Object, 0, len(objects))
	for _, obj := range objects {
		accessor, err := meta.Accessor(obj)
		if err != nil {
			continue
		}
		key := objectKey{kind: fmt.Sprintf("%T", obj), namespace: accessor.GetNamespace(), name: accessor.GetName()}
		if i, seen := index[key]; seen {
			out[i] = obj
			continue
		}
		index[key] = len(out)
		out = append(out, obj)
	}
	return out
}

// DecodeObjects reads a multi-document YAML or JSON stream, flattening List
// documents. Kinds the snapshot does not use are skipped. Objects without a
// namespace are placed in defaultNamespace.
func DecodeObjects(r io.Reader, defaultNamespace string) ([]runtime.Object, error) {
	dec := yaml.NewYAMLOrJSONDecoder(r, 4096)
	var out []runtime.Object
	for {
		var raw map[string]interface{}
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		if len(raw) == 0 {
			continue
		}
		u := &unstructured.Unstructured{Object: raw}
		if u.IsList() {
			list, err := u.ToList()
			if err != nil {
				return nil, fmt.Errorf("decode list: %w", err)
			}
			for i := range list.Items {
				obj, err := typedObject(&list.Items[i], defaultNamespace)
				if err != nil {
					return nil, err
				}
				if obj != nil {
					out = append(out, obj)
				}
			}
			continue
		}
		obj, err := typedObject(u, defaultNamespace)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			out = append(out, obj)
		}
	}
	return out, nil
}

func typedObject(u *unstructured.Unstructured, defaultNamespace string) (runtime.Object, error) {
	if strings.TrimSpace(u.GetNamespace()) == "" {
		u.SetNamespace(defaultNamespace)
	}

	var obj runtime.Object
	switch u.GetKind() {
	case "Pod":
		obj = &corev1.Pod{}
	case "Deployment":
		obj = &appsv1.Deployment{}
	case "Event":
		// events.k8s.io/v1 events use a different schema.
		if u.GetAPIVersion() != "v1" {
			return nil, nil
		}
		obj = &corev1.Event{}
	case "Service":
		obj = &corev1.Service{}
	case "EndpointSlice":
		obj = &discoveryv1.EndpointSlice{}
	default:
		return nil, nil
	}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, obj); err != nil {
		return nil, fmt.Errorf("convert %s %s: %w", u.GetKind(), u.GetName(), err)
	}
	return obj, nil
}
