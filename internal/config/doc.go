// Package config provides configuration structures and utilities for sitecrawler.
// It defines crawl bounds, fetch settings, report destinations and the
// optional per-site YAML configuration file.
package config
