package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Wildcard matches any single value of a routing key segment.
const Wildcard = "*"

// ServiceType is the top-level service a change happened in.
type ServiceType string

const (
	ServiceEmployee ServiceType = "employee"
	ServiceOrgUnit  ServiceType = "org_unit"
	ServiceWildcard ServiceType = Wildcard
)

// ObjectType is the kind of object a change affected.
type ObjectType string

const (
	ObjectAddress     ObjectType = "address"
	ObjectAssociation ObjectType = "association"
	ObjectEmployee    ObjectType = "employee"
	ObjectEngagement  ObjectType = "engagement"
	ObjectIT          ObjectType = "it"
	ObjectKLE         ObjectType = "kle"
	ObjectLeave       ObjectType = "leave"
	ObjectManager     ObjectType = "manager"
	ObjectOwner       ObjectType = "owner"
	ObjectOrgUnit     ObjectType = "org_unit"
	ObjectRelatedUnit ObjectType = "related_unit"
	ObjectRole        ObjectType = "role"
	ObjectWildcard    ObjectType = Wildcard
)

// RequestType is the kind of change.
type RequestType string

const (
	RequestCreate    RequestType = "create"
	RequestEdit      RequestType = "edit"
	RequestTerminate RequestType = "terminate"
	RequestRefresh   RequestType = "refresh"
	RequestWildcard  RequestType = Wildcard
)

var (
	validServices = map[ServiceType]bool{
		ServiceEmployee: true,
		ServiceOrgUnit:  true,
		ServiceWildcard: true,
	}
	validObjects = map[ObjectType]bool{
		ObjectAddress:     true,
		ObjectAssociation: true,
		ObjectEmployee:    true,
		ObjectEngagement:  true,
		ObjectIT:          true,
		ObjectKLE:         true,
		ObjectLeave:       true,
		ObjectManager:     true,
		ObjectOwner:       true,
		ObjectOrgUnit:     true,
		ObjectRelatedUnit: true,
		ObjectRole:        true,
		ObjectWildcard:    true,
	}
	validRequests = map[RequestType]bool{
		RequestCreate:    true,
		RequestEdit:      true,
		RequestTerminate: true,
		RequestRefresh:   true,
		RequestWildcard:  true,
	}
)

// RoutingKey is a structured service.object.request routing key.
// Wildcard segments are only meaningful on the registration side.
type RoutingKey struct {
	Service ServiceType
	Object  ObjectType
	Request RequestType
}

// NewRoutingKey builds a validated routing key.
func NewRoutingKey(service ServiceType, object ObjectType, request RequestType) (RoutingKey, error) {
	key := RoutingKey{Service: service, Object: object, Request: request}
	return key, key.Validate()
}

// ParseRoutingKey parses "service.object.request" into its segments,
// validating each against the known vocabulary.
func ParseRoutingKey(raw string) (RoutingKey, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return RoutingKey{}, fmt.Errorf("routing key %q is not a service.object.request triple", raw)
	}
	key := RoutingKey{
		Service: ServiceType(parts[0]),
		Object:  ObjectType(parts[1]),
		Request: RequestType(parts[2]),
	}
	return key, key.Validate()
}

// Validate checks every segment against the known vocabulary.
func (k RoutingKey) Validate() error {
	if !validServices[k.Service] {
		return fmt.Errorf("unknown service type %q", k.Service)
	}
	if !validObjects[k.Object] {
		return fmt.Errorf("unknown object type %q", k.Object)
	}
	if !validRequests[k.Request] {
		return fmt.Errorf("unknown request type %q", k.Request)
	}
	return nil
}

// String renders the dotted topic form.
func (k RoutingKey) String() string {
	return fmt.Sprintf("%s.%s.%s", k.Service, k.Object, k.Request)
}

// Payload is the body of a structured event.
type Payload struct {
	// UUID identifies the service-level object, i.e. the employee or
	// organisation unit the change belongs to.
	UUID uuid.UUID `json:"uuid"`

	// ObjectUUID identifies the changed object itself.
	ObjectUUID uuid.UUID `json:"object_uuid"`

	// Time is when the change takes effect.
	Time time.Time `json:"time"`
}
