// Package influxdb records shadesync telemetry as time series using
// the official influxdb-client-go v2 library. It stores shade
// position per axis, battery decline on battery-powered motors, link
// quality (RSSI) reported by the gateway, and scene activation
// history.
//
// Writes go through the client's non-blocking batched API, sized by
// batch_size and flush_interval from config.yaml, so a shade in
// motion reporting position once a second does not cost a network
// round trip per point. Batch failures surface through an error
// callback rather than a return value. All methods are safe for
// concurrent use.
//
// The whole package can be disabled in configuration, in which case
// Connect returns ErrDisabled and the caller runs without telemetry.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePosition("shce86a4fe", "primary", 42)
package influxdb
