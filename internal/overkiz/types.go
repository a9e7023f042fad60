package overkiz

// Wire types for the Overkiz enduser API. Field sets are trimmed to
// what shadesync reads; the gateway sends far more.

// DeviceState is one name/value pair in a device's state list.
// Values arrive as JSON numbers, strings or objects depending on the
// state; consumers type-assert what they need.
type DeviceState struct {
	Name  string `json:"name"`
	Type  int    `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Device is one entry from GET setup/devices.
type Device struct {
	DeviceURL        string        `json:"deviceURL"`
	Label            string        `json:"label"`
	ControllableName string        `json:"controllableName"`
	PlaceOID         string        `json:"placeOID,omitempty"`
	Available        bool          `json:"available"`
	Enabled          bool          `json:"enabled"`
	States           []DeviceState `json:"states,omitempty"`
}

// State returns the value of a named state, or nil when absent.
func (d *Device) State(name string) any {
	for _, s := range d.States {
		if s.Name == name {
			return s.Value
		}
	}
	return nil
}

// Command is one command in an action, e.g. {"name": "setClosure",
// "parameters": [25]}.
type Command struct {
	Name       string `json:"name"`
	Parameters []any  `json:"parameters,omitempty"`
}

// Action targets one device with a list of commands.
type Action struct {
	DeviceURL string    `json:"deviceURL"`
	Commands  []Command `json:"commands"`
}

// ActionGroup is one entry from GET actionGroups: a gateway scenario.
type ActionGroup struct {
	OID     string   `json:"oid"`
	Label   string   `json:"label"`
	Actions []Action `json:"actions,omitempty"`
}

// Event is one entry from an event fetch. Which fields are populated
// depends on Name (DeviceStateChangedEvent, ExecutionStateChangedEvent,
// GatewayAliveEvent, DeviceCreatedEvent, ...).
type Event struct {
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp,omitempty"` // milliseconds since epoch

	DeviceURL    string        `json:"deviceURL,omitempty"`
	DeviceStates []DeviceState `json:"deviceStates,omitempty"`

	ExecID   string `json:"execId,omitempty"`
	NewState string `json:"newState,omitempty"`

	GatewayID string `json:"gatewayId,omitempty"`
	ActionOID string `json:"actionGroupOID,omitempty"`
}

// execRequest is the body of POST exec/apply.
type execRequest struct {
	Label   string   `json:"label"`
	Actions []Action `json:"actions"`
}

// execResponse is the body returned by exec/apply and exec/{oid}.
type execResponse struct {
	ExecID string `json:"execId"`
}

// listenerResponse is the body returned by events/register.
type listenerResponse struct {
	ID string `json:"id"`
}

// apiError is the error body the gateway returns on non-2xx statuses.
type apiError struct {
	ErrorCode string `json:"errorCode"`
	Error     string `json:"error"`
}
