package k8s

import (
	"context"
	"fmt"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/restmapper"
	"sigs.k8s.io/yaml"
)

// Applier applies and deletes multi-document YAML manifests through the
// dynamic client, giving the manifest path the same upsert semantics the
// chart path gets from Helm.
type Applier struct {
	client dynamic.Interface
	mapper meta.RESTMapper
}

// NewApplier creates an Applier from a dynamic client and a REST mapper.
func NewApplier(client dynamic.Interface, mapper meta.RESTMapper) *Applier {
	return &Applier{client: client, mapper: mapper}
}

// NewDiscoveryRESTMapper builds a REST mapper backed by live API discovery.
func NewDiscoveryRESTMapper(discoveryClient discovery.DiscoveryInterface) meta.RESTMapper {
	return restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(discoveryClient))
}

// Apply creates or updates every resource in the manifest. Namespaced
// resources without an explicit namespace land in defaultNamespace.
func (a *Applier) Apply(ctx context.Context, manifest []byte, defaultNamespace string) error {
	objects, err := decodeManifest(manifest)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		err := a.upsert(ctx, obj, defaultNamespace)
		if err != nil {
			return err
		}
	}

	return nil
}

// Delete removes every resource in the manifest, tolerating resources that
// are already gone.
func (a *Applier) Delete(ctx context.Context, manifest []byte, defaultNamespace string) error {
	objects, err := decodeManifest(manifest)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		resource, err := a.resourceFor(obj, defaultNamespace)
		if err != nil {
			return err
		}

		err = resource.Delete(ctx, obj.GetName(), metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			return fmt.Errorf("delete %s %q: %w", obj.GetKind(), obj.GetName(), err)
		}
	}

	return nil
}

func (a *Applier) upsert(
	ctx context.Context,
	obj *unstructured.Unstructured,
	defaultNamespace string,
) error {
	resource, err := a.resourceFor(obj, defaultNamespace)
	if err != nil {
		return err
	}

	existing, err := resource.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return fmt.Errorf("get %s %q: %w", obj.GetKind(), obj.GetName(), err)
		}

		_, createErr := resource.Create(ctx, obj, metav1.CreateOptions{})
		if createErr != nil {
			return fmt.Errorf("create %s %q: %w", obj.GetKind(), obj.GetName(), createErr)
		}

		return nil
	}

	obj.SetResourceVersion(existing.GetResourceVersion())

	_, err = resource.Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("update %s %q: %w", obj.GetKind(), obj.GetName(), err)
	}

	return nil
}

func (a *Applier) resourceFor(
	obj *unstructured.Unstructured,
	defaultNamespace string,
) (dynamic.ResourceInterface, error) {
	gvk := obj.GroupVersionKind()

	mapping, err := a.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, fmt.Errorf("resolve rest mapping for %s: %w", gvk.String(), err)
	}

	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		namespace := obj.GetNamespace()
		if namespace == "" {
			namespace = defaultNamespace
		}

		return a.client.Resource(mapping.Resource).Namespace(namespace), nil
	}

	return a.client.Resource(mapping.Resource), nil
}

// decodeManifest splits a multi-document YAML stream into unstructured
// objects, skipping empty documents.
func decodeManifest(manifest []byte) ([]*unstructured.Unstructured, error) {
	documents := strings.Split(string(manifest), "\n---")

	objects := make([]*unstructured.Unstructured, 0, len(documents))

	for _, doc := range documents {
		if strings.TrimSpace(doc) == "" {
			continue
		}

		var content map[string]interface{}

		err := yaml.Unmarshal([]byte(doc), &content)
		if err != nil {
			return nil, fmt.Errorf("decode manifest document: %w", err)
		}

		if len(content) == 0 {
			continue
		}

		objects = append(objects, &unstructured.Unstructured{Object: content})
	}

	if len(objects) == 0 {
		return nil, ErrEmptyManifest
	}

	return objects, nil
}
