// Package config loads the proxy configuration from the environment and an
// optional .env file.
package config
