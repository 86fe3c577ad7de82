// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Each watch entry describes one route to monitor; notifications list the
// transports that receive findings.
package config
