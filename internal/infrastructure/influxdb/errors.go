package influxdb

import "errors"

// Sentinel errors, checked with errors.Is:
//
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without a recorder
//	}
var (
	// ErrNotConnected means the client has been closed or never
	// connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the startup ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled means the influxdb section of config.yaml is
	// switched off; position history is simply not recorded.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
