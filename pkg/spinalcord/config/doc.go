/*
Package config loads spinalcord runtime settings.

# Overview

Config wraps a map[string]any and provides typed accessors that return a
default when a key is missing or has the wrong type. Keys are dotted paths
into nested sections, which matches both YAML files and the map returned by
viper.AllSettings:

	cfg, err := config.FromFile("spinalcord.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	capacity := cfg.Int("flow.capacity", 256)

Settings turns a Config into the typed struct consumed by the runtime:

	settings := config.FromMap(viper.AllSettings()).Settings()

# Type Coercion

String values are parsed for Int, Bool and Duration so environment variable
overrides (always strings) behave like their YAML equivalents. Durations
given as bare numbers are seconds.

# File Format

	flow:
	  capacity: 256
	  send_timeout: 5s
	quarantine:
	  intake_capacity: 64
	  notify_capacity: 64
	eventlog:
	  path: /var/lib/spinalcord/events.db
	integrity:
	  manifest: /etc/spinalcord/integrity.json
	  interval: 60s
	metrics:
	  addr: ":9090"
	safe_mode:
	  reset_token: change-me
	log:
	  level: info
	  format: json

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
