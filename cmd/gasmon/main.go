package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/robotalks/gasbridge/pkg/mirror"
)

var (
	mqttURL = "mqtt://localhost:1883/gasbridge/"
)

func init() {
	if val := os.Getenv("GASBRIDGE_MIRROR_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

// describe formats a message published by the bridge mirror.
func describe(topic string, payload []byte) string {
	switch {
	case strings.HasSuffix(topic, "/sample"):
		var msg mirror.SampleMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Sprintf("%s: bad sample: %v", topic, err)
		}
		line := fmt.Sprintf("%s: [%s] CH4=%g C2H6=%g H2O=%g SOC=%d",
			topic, msg.Sensor, msg.Data.CH4, msg.Data.C2H6, msg.Data.H2O, msg.Data.SOC)
		if d := msg.Drone; d != nil {
			line += fmt.Sprintf(" @%.7f,%.7f,%.1fm", d.Lat, d.Lon, d.Alt)
		}
		return line
	}
	return fmt.Sprintf("%s: %s", topic, string(payload))
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, prefix, err := mirror.ClientOptionsFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if opts.ClientID == "" {
		opts.SetClientID(mirror.DefaultClientID() + ":mon")
	}
	opts.SetOnConnectHandler(func(c paho.Client) {
		c.Subscribe(prefix+"#", 0, func(_ paho.Client, msg paho.Message) {
			log.Println(describe(msg.Topic(), msg.Payload()))
		})
	})
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
