package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/presenced.db"

	// MQTT
	MQTTBroker      string // host:port
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicFrame  string
	MQTTTopicResult string
	MQTTQoS         int

	// Event decoding mode: "assertion" (pre-resolved JSON) or
	// "capture" (raw template payloads needing local matching).
	Mode string

	// Matching / gating
	Tolerance       float64 // inclusive match distance bound
	CooldownSeconds int
	TemplateDim     int // extractor vector dimension

	// Caches / background work
	RecentCapacity       int
	ReloadIntervalMinute int // 0 = periodic directory reload disabled
}

func FromEnv() Config {
	addr := getenvDefault("PRESENCED_HTTP_ADDR", ":8000")

	env := strings.ToLower(getenvDefault("PRESENCED_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	mode := strings.ToLower(getenvDefault("PRESENCED_MODE", "assertion"))
	if mode != "assertion" && mode != "capture" {
		mode = "assertion"
	}

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   getenvDefault("PRESENCED_DB_PATH", "./data/presenced.db"),

		MQTTBroker:      getenvDefault("PRESENCED_MQTT_BROKER", "127.0.0.1:1883"),
		MQTTUsername:    os.Getenv("PRESENCED_MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("PRESENCED_MQTT_PASSWORD"),
		MQTTTopicFrame:  getenvDefault("PRESENCED_MQTT_TOPIC_FRAME", "attendance/camera/frame"),
		MQTTTopicResult: getenvDefault("PRESENCED_MQTT_TOPIC_RESULT", "attendance/result"),
		MQTTQoS:         getenvInt("PRESENCED_MQTT_QOS", 0),

		Mode: mode,

		Tolerance:       getenvFloat("PRESENCED_TOLERANCE", 0.5),
		CooldownSeconds: getenvInt("PRESENCED_COOLDOWN_SECONDS", 30),
		TemplateDim:     getenvInt("PRESENCED_TEMPLATE_DIM", 128),

		RecentCapacity:       getenvInt("PRESENCED_RECENT_CAPACITY", 100),
		ReloadIntervalMinute: getenvInt("PRESENCED_RELOAD_INTERVAL_MIN", 0),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}
