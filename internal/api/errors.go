package api

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents a resource not found error with contextual information.
// This standardized error type provides consistent error handling across all API
// operations for cases where requested resources don't exist in the system.
//
// The error includes resource type and name for precise error reporting and
// supports custom error messages for specific use cases.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "connection", "namespace", "hierarchy instance", "topic")
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
// Returns either the custom message if provided, or a formatted default message
// using the resource type and name.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
// This function provides a type-safe way to check for not found conditions
// in error handling code, supporting wrapped errors.
//
// Example:
//
//	summary, err := manager.GetConnection("conn-1")
//	if api.IsNotFound(err) {
//	    // Handle not found case
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
// This is the standard way to create not found errors throughout the API.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// Specific NotFoundError constructors for each resource type.
// These provide convenient, type-specific error creation with consistent naming.
var (
	// NewConnectionNotFoundError creates a connection not found error.
	NewConnectionNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("connection", id)
	}

	// NewTopicNotFoundError creates a topic not found error.
	NewTopicNotFoundError = func(topic string) *NotFoundError {
		return NewNotFoundError("topic", topic)
	}

	// NewNamespaceNotFoundError creates a namespace not found error.
	NewNamespaceNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("namespace", id)
	}

	// NewHierarchyInstanceNotFoundError creates a hierarchy instance not found error.
	NewHierarchyInstanceNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("hierarchy instance", id)
	}

	// NewHierarchyNodeNotFoundError creates a hierarchy node not found error.
	NewHierarchyNodeNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("hierarchy node", id)
	}

	// NewHierarchyConfigurationNotFoundError creates a hierarchy configuration not found error.
	NewHierarchyConfigurationNotFoundError = func(id string) *NotFoundError {
		return NewNotFoundError("hierarchy configuration", id)
	}
)

// DuplicateError represents a uniqueness violation on create or rename.
// The operation is aborted before anything is persisted.
type DuplicateError struct {
	// ResourceType categorizes the duplicated resource
	// (e.g., "hierarchy instance", "namespace")
	ResourceType string

	// ResourceName is the conflicting name
	ResourceName string

	// Scope describes where the name collided (e.g. the parent path)
	Scope string
}

// Error implements the error interface for DuplicateError.
func (e *DuplicateError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s %q already exists in %s", e.ResourceType, e.ResourceName, e.Scope)
	}
	return fmt.Sprintf("%s %q already exists", e.ResourceType, e.ResourceName)
}

// IsDuplicate checks if an error is a DuplicateError using error unwrapping.
func IsDuplicate(err error) bool {
	var duplicateErr *DuplicateError
	return errors.As(err, &duplicateErr)
}

// NewDuplicateHierarchyInstanceError creates the error raised when two
// sibling hierarchy instances would share a name.
func NewDuplicateHierarchyInstanceError(name, scope string) *DuplicateError {
	return &DuplicateError{ResourceType: "hierarchy instance", ResourceName: name, Scope: scope}
}

// NewDuplicateNamespaceError creates the error raised when a namespace would
// collide with an existing one at the same parent and hierarchical level.
func NewDuplicateNamespaceError(name, scope string) *DuplicateError {
	return &DuplicateError{ResourceType: "namespace", ResourceName: name, Scope: scope}
}

// ValidationError aggregates the individual findings of a configuration
// validation. It is raised before any resource is allocated or persisted.
type ValidationError struct {
	// Component names what was validated (e.g. "connection conn-1",
	// "hierarchy configuration isa95")
	Component string

	// Problems lists each validation finding
	Problems []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is invalid: %s", e.Component, strings.Join(e.Problems, "; "))
}

// IsValidation checks if an error is a ValidationError using error unwrapping.
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// NewValidationError creates a ValidationError for the given component.
func NewValidationError(component string, problems ...string) *ValidationError {
	return &ValidationError{Component: component, Problems: problems}
}

// Common errors for API operations.
// These predefined errors provide consistent error reporting for common failure
// scenarios related to handler registration in the Service Locator Pattern.
var (
	// ErrUnknownConnectionType indicates that no descriptor is registered for
	// the requested connection type.
	ErrUnknownConnectionType = errors.New("unknown connection type")

	// Handler not registered errors - indicate that required handlers are not available

	// ErrConnectionManagerNotRegistered indicates the connection manager handler is not registered
	ErrConnectionManagerNotRegistered = errors.New("connection manager handler not registered")

	// ErrNamespaceStructureNotRegistered indicates the namespace structure handler is not registered
	ErrNamespaceStructureNotRegistered = errors.New("namespace structure handler not registered")

	// ErrAutoMapperNotRegistered indicates the auto-mapper handler is not registered
	ErrAutoMapperNotRegistered = errors.New("auto-mapper handler not registered")

	// ErrPipelineNotRegistered indicates the pipeline handler is not registered
	ErrPipelineNotRegistered = errors.New("pipeline handler not registered")
)
