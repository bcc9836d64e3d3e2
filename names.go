package quoll

import (
	"fmt"
	"reflect"
	"strings"
)

// Reserved tokens partition the backing store's namespace into four
// disjoint regions: plain collections, typed repository stores, index
// bookkeeping, and the internal user-credential map. They are part of the
// persisted format and must never change for stores written by earlier
// versions to stay readable.
const (
	internalNameSeparator = "|"
	userMapName           = "$quoll_users"
	indexMetaPrefix       = "$quoll_index_meta"
	indexPrefix           = "$quoll_index"
	objectStoreSeparator  = ":"
)

// isValidCollectionName reports whether name is usable as a plain
// collection name. Names carrying any reserved token are rejected so they
// can never collide with repository stores, index maps, or the user map.
func isValidCollectionName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.Contains(name, internalNameSeparator) &&
		!strings.Contains(name, userMapName) &&
		!strings.Contains(name, indexMetaPrefix) &&
		!strings.Contains(name, indexPrefix) &&
		!strings.Contains(name, objectStoreSeparator)
}

// validateCollectionName returns ErrInvalidName, wrapped with the violated
// rule, when name is not a valid plain collection name.
func validateCollectionName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case strings.Contains(name, internalNameSeparator):
		return fmt.Errorf("%w: name contains reserved separator %q", ErrInvalidName, internalNameSeparator)
	case strings.Contains(name, userMapName):
		return fmt.Errorf("%w: name contains reserved map name %q", ErrInvalidName, userMapName)
	case strings.Contains(name, indexMetaPrefix):
		return fmt.Errorf("%w: name contains reserved prefix %q", ErrInvalidName, indexMetaPrefix)
	case strings.Contains(name, indexPrefix):
		return fmt.Errorf("%w: name contains reserved prefix %q", ErrInvalidName, indexPrefix)
	case strings.Contains(name, objectStoreSeparator):
		return fmt.Errorf("%w: name contains repository separator %q", ErrInvalidName, objectStoreSeparator)
	default:
		return nil
	}
}

// repositoryTypeNameOf derives the stable, fully-qualified name of t.
// Pointers are unwrapped; unnamed and built-in types are rejected because
// their names are not unique across the process lifetime.
func repositoryTypeNameOf(t reflect.Type) (string, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "", fmt.Errorf("%w: unnamed type %s", ErrInvalidRepositoryType, t.String())
	}
	if t.PkgPath() == "" {
		return "", fmt.Errorf("%w: built-in type %s", ErrInvalidRepositoryType, t.String())
	}
	return t.PkgPath() + "." + t.Name(), nil
}

// repositoryStoreName derives the backing map name for a repository of t.
// The derivation is injective: Go import paths and identifiers cannot
// contain the separator, so two distinct types never share a store name.
func repositoryStoreName(t reflect.Type) (string, error) {
	typeName, err := repositoryTypeNameOf(t)
	if err != nil {
		return "", err
	}
	return typeName + objectStoreSeparator, nil
}

// isRepositoryStore reports whether a map name was produced by
// repositoryStoreName.
func isRepositoryStore(name string) bool {
	return repositoryTypeFromStoreName(name) != ""
}

// repositoryTypeFromStoreName recovers the originating type name from a
// repository store name, or "" when the name is not a repository store.
func repositoryTypeFromStoreName(name string) string {
	if !strings.HasSuffix(name, objectStoreSeparator) {
		return ""
	}
	typeName := strings.TrimSuffix(name, objectStoreSeparator)
	if typeName == "" || strings.Contains(typeName, objectStoreSeparator) {
		return ""
	}
	return typeName
}
