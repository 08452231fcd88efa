// Package event layers a structured event vocabulary on top of the raw
// topic router. Routing keys are service.object.request triples, such
// as "employee.address.create", and payloads carry the affected object
// identities and the event time. Handlers registered through this
// package receive parsed keys and payloads, and events for the same
// object are processed one at a time.
package event
