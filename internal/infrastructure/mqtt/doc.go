// Package mqtt wraps the Eclipse Paho client with the connection
// handling shadesync needs: automatic reconnect with subscription
// replay, a Last Will message so consumers see the service drop
// offline, and retained status publishing so late subscribers get
// current state immediately.
//
// # Architecture
//
// MQTT is shadesync's outward-facing surface. Entity status fields,
// entity lifecycle notices, and a gateway event mirror are published
// here, and entity commands arrive here. The broker decouples
// shadesync from whatever dashboard or automation consumes it.
//
//	Overkiz Gateway <-> shadesync <-> MQTT Broker <-> Consumers
//
// Status topics are published retained at QoS 1, commands are
// subscribed at QoS 1 with a wildcard so new entities need no
// subscription changes. TLS to the broker is expected outside local
// development; payloads themselves are plain text.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all entity commands
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a status field
//	topic := mqtt.Topics{}.Status("shce86a4fe", "primary")
//	client.Publish(topic, []byte("42"), 1, true)
package mqtt
