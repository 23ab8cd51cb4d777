/*
Package config holds the init-time tunables of a SwarmRT instance.

Every knob the kernel exposes — arena size, heap-block words, reduction
budget, steal batch, idle sleep — lives in one Config struct with YAML
tags, so an instance can be described by a file:

	name: edge-node-3
	workers: 8
	max_processes: 131072
	heap_min_words: 256
	log:
	  level: debug

Load overlays a file on the defaults; Normalize fills zero values so a
partially specified Config (common in tests) is always runnable.
*/
package config
