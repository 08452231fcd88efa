package event

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueworks/amqpdispatch/rabbit"
	"github.com/queueworks/amqpdispatch/router"
)

func eventBody(t *testing.T, payload Payload) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func TestRegisterDispatchesParsedEvents(t *testing.T) {
	r := NewRouter(nil)

	var gotKey RoutingKey
	var gotPayload Payload
	require.NoError(t, r.Register("addresses", ServiceEmployee, ObjectAddress, RequestCreate,
		func(ctx context.Context, key RoutingKey, payload Payload, msg router.Message) error {
			gotKey = key
			gotPayload = payload
			return nil
		}))

	payload := Payload{
		UUID:       uuid.New(),
		ObjectUUID: uuid.New(),
		Time:       time.Now().UTC().Truncate(time.Second),
	}
	bindings := r.Registry().Resolve("employee.address.create")
	require.Len(t, bindings, 1)
	assert.Equal(t, "addresses", bindings[0].Name)

	err := bindings[0].Handler(context.Background(), router.Message{
		RoutingKey: "employee.address.create",
		Body:       eventBody(t, payload),
	})
	require.NoError(t, err)
	assert.Equal(t, RoutingKey{ServiceEmployee, ObjectAddress, RequestCreate}, gotKey)
	assert.Equal(t, payload, gotPayload)
}

func TestRegisterWildcardPattern(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.Register("everything", ServiceWildcard, ObjectWildcard, RequestWildcard,
		func(ctx context.Context, key RoutingKey, payload Payload, msg router.Message) error {
			return nil
		}))

	assert.Len(t, r.Registry().Resolve("employee.it.edit"), 1)
	assert.Len(t, r.Registry().Resolve("org_unit.kle.refresh"), 1)
	assert.Empty(t, r.Registry().Resolve("too.many.segments.here"))
}

func TestRegisterRejectsUnknownVocabulary(t *testing.T) {
	r := NewRouter(nil)
	err := r.Register("bad", ServiceType("person"), ObjectAddress, RequestCreate,
		func(ctx context.Context, key RoutingKey, payload Payload, msg router.Message) error {
			return nil
		})
	require.Error(t, err)
	assert.Empty(t, r.Registry().Bindings())
}

func TestMalformedPayloadIsSerializationError(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.Register("addresses", ServiceEmployee, ObjectAddress, RequestCreate,
		func(ctx context.Context, key RoutingKey, payload Payload, msg router.Message) error {
			t.Fatal("handler must not run for a malformed payload")
			return nil
		}))

	bindings := r.Registry().Resolve("employee.address.create")
	require.Len(t, bindings, 1)

	err := bindings[0].Handler(context.Background(), router.Message{
		RoutingKey: "employee.address.create",
		Body:       []byte("not json"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, rabbit.ErrSerialization)
	assert.NotErrorIs(t, err, rabbit.ErrRejectMessage)
}

func TestSameObjectEventsAreSerialized(t *testing.T) {
	r := NewRouter(nil)

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	require.NoError(t, r.Register("addresses", ServiceEmployee, ObjectAddress, RequestEdit,
		func(ctx context.Context, key RoutingKey, payload Payload, msg router.Message) error {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		}))

	bindings := r.Registry().Resolve("employee.address.edit")
	require.Len(t, bindings, 1)

	body := eventBody(t, Payload{UUID: uuid.New(), ObjectUUID: uuid.New()})
	msg := router.Message{RoutingKey: "employee.address.edit", Body: body}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, bindings[0].Handler(context.Background(), msg))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}

type publishRecorder struct {
	routingKey string
	payload    interface{}
}

func (p *publishRecorder) PublishMessage(ctx context.Context, routingKey string, payload interface{}) error {
	p.routingKey = routingKey
	p.payload = payload
	return nil
}

func TestPublish(t *testing.T) {
	recorder := &publishRecorder{}
	payload := Payload{UUID: uuid.New(), ObjectUUID: uuid.New(), Time: time.Now()}
	key := RoutingKey{ServiceOrgUnit, ObjectManager, RequestTerminate}

	require.NoError(t, Publish(context.Background(), recorder, key, payload))
	assert.Equal(t, "org_unit.manager.terminate", recorder.routingKey)
	assert.Equal(t, payload, recorder.payload)
}

func TestPublishValidatesKey(t *testing.T) {
	recorder := &publishRecorder{}
	err := Publish(context.Background(), recorder, RoutingKey{Service: "person"}, Payload{})
	require.Error(t, err)
	assert.Empty(t, recorder.routingKey)
}
